package timetable

import (
	"errors"
	"math"
	"time"
)

// AttendanceStatus enumerates the presence outcomes for one participant.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// Valid reports whether s is a known attendance status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// Attended reports whether the status counts towards the attendance rate.
func (s AttendanceStatus) Attended() bool {
	return s == AttendancePresent || s == AttendanceLate
}

var (
	// ErrInvalidOccurrenceState indicates attendance was taken outside the
	// ongoing/completed states.
	ErrInvalidOccurrenceState = errors.New("timetable: occurrence state does not accept attendance")
	// ErrUnknownParticipant indicates the participant is not on the
	// occurrence's list.
	ErrUnknownParticipant = errors.New("timetable: participant not in occurrence")
	// ErrInvalidAttendanceStatus indicates an unrecognized presence outcome.
	ErrInvalidAttendanceStatus = errors.New("timetable: invalid attendance status")
)

// AttendanceRecord is one participant's presence outcome for one occurrence.
// Records never exist detached from their occurrence.
type AttendanceRecord struct {
	ParticipantID string
	Status        AttendanceStatus
	CheckIn       *time.Time
	CheckOut      *time.Time
	Note          string
}

// ValidateAttendance checks whether the record may be applied to an occurrence
// in the given state with the given participant list.
func ValidateAttendance(state Status, participants []string, rec AttendanceRecord) error {
	if !AttendanceEligible(state) {
		return ErrInvalidOccurrenceState
	}
	if !rec.Status.Valid() {
		return ErrInvalidAttendanceStatus
	}
	for _, id := range participants {
		if id == rec.ParticipantID {
			return nil
		}
	}
	return ErrUnknownParticipant
}

// UpsertRecord applies rec to the record set, overwriting any existing record
// for the same participant. Re-submission never duplicates.
func UpsertRecord(records []AttendanceRecord, rec AttendanceRecord) []AttendanceRecord {
	for i, existing := range records {
		if existing.ParticipantID == rec.ParticipantID {
			out := make([]AttendanceRecord, len(records))
			copy(out, records)
			out[i] = rec
			return out
		}
	}
	out := make([]AttendanceRecord, 0, len(records)+1)
	out = append(out, records...)
	return append(out, rec)
}

// Rate derives the attendance rate as a whole percentage: the share of
// records counting as attended (present or late), rounded to the nearest
// integer. An occurrence without records has a rate of 0.
func Rate(records []AttendanceRecord) int {
	if len(records) == 0 {
		return 0
	}
	attended := 0
	for _, rec := range records {
		if rec.Status.Attended() {
			attended++
		}
	}
	return int(math.Round(float64(attended) * 100 / float64(len(records))))
}
