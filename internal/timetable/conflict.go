package timetable

import "sort"

// Booking is the slice of an occurrence the conflict detector needs: who is
// bound to which room for which window. ParticipantIDs includes the instructor
// alongside every enrolled student.
type Booking struct {
	ID             string
	RoomID         string
	ParticipantIDs []string
	Window         Window
}

// ConflictKind describes the resource dimension on which two bookings collide.
type ConflictKind string

const (
	// ConflictKindRoom indicates the room is double-booked.
	ConflictKindRoom ConflictKind = "room"
	// ConflictKindParticipant indicates a participant is double-booked.
	ConflictKindParticipant ConflictKind = "participant"
)

// Conflict is a computed, never persisted, collision between the candidate and
// one existing occurrence. Callers surface the full list before commit.
type Conflict struct {
	Kind             ConflictKind
	WithOccurrenceID string
	ParticipantID    string
	Overlap          Window
}

// DetectConflicts runs the two independent overlap checks for the candidate
// against every existing booking: same-room collisions and per-participant
// double bookings. All checks use half-open interval semantics, so adjacent
// bookings are never conflicts.
//
// The result is ordered by the conflicting booking's start time ascending;
// for the same pair the room conflict precedes participant conflicts, and
// participant conflicts are ordered by participant id.
func DetectConflicts(existing []Booking, candidate Booking) []Conflict {
	if candidate.Window.IsZero() {
		return nil
	}

	ordered := make([]Booking, len(existing))
	copy(ordered, existing)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Window.Start.Equal(ordered[j].Window.Start) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Window.Start.Before(ordered[j].Window.Start)
	})

	candidateParticipants := uniqueSorted(candidate.ParticipantIDs)

	var conflicts []Conflict
	seen := make(map[string]struct{}, len(ordered))
	for _, other := range ordered {
		if other.ID == candidate.ID {
			continue
		}
		if _, dup := seen[other.ID]; dup {
			continue
		}
		seen[other.ID] = struct{}{}

		overlap, ok := candidate.Window.Intersect(other.Window)
		if !ok {
			continue
		}

		if candidate.RoomID != "" && candidate.RoomID == other.RoomID {
			conflicts = append(conflicts, Conflict{
				Kind:             ConflictKindRoom,
				WithOccurrenceID: other.ID,
				Overlap:          overlap,
			})
		}

		otherParticipants := make(map[string]struct{}, len(other.ParticipantIDs))
		for _, id := range other.ParticipantIDs {
			otherParticipants[id] = struct{}{}
		}
		for _, id := range candidateParticipants {
			if _, shared := otherParticipants[id]; !shared {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Kind:             ConflictKindParticipant,
				WithOccurrenceID: other.ID,
				ParticipantID:    id,
				Overlap:          overlap,
			})
		}
	}

	return conflicts
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
