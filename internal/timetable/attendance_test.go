package timetable

import (
	"errors"
	"testing"
)

func TestValidateAttendance(t *testing.T) {
	t.Parallel()

	participants := []string{"alice", "bob"}

	cases := []struct {
		name  string
		state Status
		rec   AttendanceRecord
		want  error
	}{
		{name: "ongoing accepts present", state: StatusOngoing, rec: AttendanceRecord{ParticipantID: "alice", Status: AttendancePresent}},
		{name: "completed accepts late correction", state: StatusCompleted, rec: AttendanceRecord{ParticipantID: "bob", Status: AttendanceLate}},
		{name: "scheduled rejects attendance", state: StatusScheduled, rec: AttendanceRecord{ParticipantID: "alice", Status: AttendancePresent}, want: ErrInvalidOccurrenceState},
		{name: "cancelled rejects attendance", state: StatusCancelled, rec: AttendanceRecord{ParticipantID: "alice", Status: AttendancePresent}, want: ErrInvalidOccurrenceState},
		{name: "postponed rejects attendance", state: StatusPostponed, rec: AttendanceRecord{ParticipantID: "alice", Status: AttendancePresent}, want: ErrInvalidOccurrenceState},
		{name: "unknown participant", state: StatusOngoing, rec: AttendanceRecord{ParticipantID: "mallory", Status: AttendancePresent}, want: ErrUnknownParticipant},
		{name: "unknown status", state: StatusOngoing, rec: AttendanceRecord{ParticipantID: "alice", Status: AttendanceStatus("asleep")}, want: ErrInvalidAttendanceStatus},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateAttendance(tc.state, participants, tc.rec)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUpsertRecord_OverwritesWithoutDuplicating(t *testing.T) {
	t.Parallel()

	records := []AttendanceRecord{
		{ParticipantID: "alice", Status: AttendanceAbsent},
		{ParticipantID: "bob", Status: AttendancePresent},
	}

	updated := UpsertRecord(records, AttendanceRecord{ParticipantID: "alice", Status: AttendanceLate})
	if len(updated) != 2 {
		t.Fatalf("re-submission must not duplicate, got %d records", len(updated))
	}
	if updated[0].Status != AttendanceLate {
		t.Fatalf("expected alice's record to be overwritten, got %s", updated[0].Status)
	}
	if records[0].Status != AttendanceAbsent {
		t.Fatalf("upsert must not mutate the input slice")
	}

	grown := UpsertRecord(updated, AttendanceRecord{ParticipantID: "carol", Status: AttendanceExcused})
	if len(grown) != 3 {
		t.Fatalf("expected a new record to be appended, got %d", len(grown))
	}
}

func TestRate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		records []AttendanceRecord
		want    int
	}{
		{name: "no records", want: 0},
		{
			name: "present and late count",
			records: []AttendanceRecord{
				{ParticipantID: "a", Status: AttendancePresent},
				{ParticipantID: "b", Status: AttendanceLate},
				{ParticipantID: "c", Status: AttendanceAbsent},
				{ParticipantID: "d", Status: AttendanceExcused},
			},
			want: 50,
		},
		{
			name: "rounds to nearest whole percent",
			records: []AttendanceRecord{
				{ParticipantID: "a", Status: AttendancePresent},
				{ParticipantID: "b", Status: AttendancePresent},
				{ParticipantID: "c", Status: AttendanceAbsent},
			},
			want: 67,
		},
		{
			name: "all attended",
			records: []AttendanceRecord{
				{ParticipantID: "a", Status: AttendancePresent},
				{ParticipantID: "b", Status: AttendanceLate},
			},
			want: 100,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Rate(tc.records); got != tc.want {
				t.Fatalf("expected rate %d, got %d", tc.want, got)
			}
		})
	}
}
