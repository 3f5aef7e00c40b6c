package timetable

import (
	"testing"
	"time"
)

func hourWindow(t *testing.T, hour int) Window {
	t.Helper()
	start := time.Date(2024, 3, 4, hour, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.Add(time.Hour)}
}

func TestDetectConflicts_RoomOverlap(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "occ-1", RoomID: "room-1", Window: hourWindow(t, 9)},
	}
	candidate := Booking{
		ID:     "occ-2",
		RoomID: "room-1",
		Window: Window{
			Start: time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC),
		},
	}

	conflicts := DetectConflicts(existing, candidate)
	if len(conflicts) != 1 {
		t.Fatalf("expected one conflict, got %d", len(conflicts))
	}
	if conflicts[0].Kind != ConflictKindRoom {
		t.Fatalf("expected room conflict, got %s", conflicts[0].Kind)
	}
	if conflicts[0].WithOccurrenceID != "occ-1" {
		t.Fatalf("expected conflict with occ-1, got %s", conflicts[0].WithOccurrenceID)
	}
	if !conflicts[0].Overlap.Start.Equal(candidate.Window.Start) {
		t.Fatalf("overlap must start at the later of both starts, got %v", conflicts[0].Overlap.Start)
	}
	if !conflicts[0].Overlap.End.Equal(existing[0].Window.End) {
		t.Fatalf("overlap must end at the earlier of both ends, got %v", conflicts[0].Overlap.End)
	}
}

func TestDetectConflicts_ParticipantOverlapAcrossRooms(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "occ-1", RoomID: "room-1", ParticipantIDs: []string{"alice", "bob"}, Window: hourWindow(t, 9)},
	}
	candidate := Booking{
		ID:             "occ-2",
		RoomID:         "room-2",
		ParticipantIDs: []string{"bob", "carol"},
		Window:         hourWindow(t, 9),
	}

	conflicts := DetectConflicts(existing, candidate)
	if len(conflicts) != 1 {
		t.Fatalf("expected one conflict, got %d", len(conflicts))
	}
	if conflicts[0].Kind != ConflictKindParticipant {
		t.Fatalf("expected participant conflict, got %s", conflicts[0].Kind)
	}
	if conflicts[0].ParticipantID != "bob" {
		t.Fatalf("expected bob to be double-booked, got %s", conflicts[0].ParticipantID)
	}
}

func TestDetectConflicts_ReportsEveryDimension(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "occ-1", RoomID: "room-1", ParticipantIDs: []string{"bob", "alice"}, Window: hourWindow(t, 9)},
	}
	candidate := Booking{
		ID:             "occ-2",
		RoomID:         "room-1",
		ParticipantIDs: []string{"bob", "alice"},
		Window:         hourWindow(t, 9),
	}

	conflicts := DetectConflicts(existing, candidate)
	if len(conflicts) != 3 {
		t.Fatalf("expected room plus two participant conflicts, got %d", len(conflicts))
	}
	if conflicts[0].Kind != ConflictKindRoom {
		t.Fatalf("room conflict must precede participant conflicts, got %s", conflicts[0].Kind)
	}
	if conflicts[1].ParticipantID != "alice" || conflicts[2].ParticipantID != "bob" {
		t.Fatalf("participant conflicts must be ordered by id, got %s then %s", conflicts[1].ParticipantID, conflicts[2].ParticipantID)
	}
}

func TestDetectConflicts_OrdersByConflictingStart(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "occ-late", RoomID: "room-1", Window: hourWindow(t, 10)},
		{ID: "occ-early", RoomID: "room-1", Window: hourWindow(t, 8)},
	}
	candidate := Booking{
		ID:     "occ-new",
		RoomID: "room-1",
		Window: Window{
			Start: time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC),
		},
	}

	conflicts := DetectConflicts(existing, candidate)
	if len(conflicts) != 2 {
		t.Fatalf("expected two conflicts, got %d", len(conflicts))
	}
	if conflicts[0].WithOccurrenceID != "occ-early" || conflicts[1].WithOccurrenceID != "occ-late" {
		t.Fatalf("conflicts must be ordered by the conflicting start, got %s then %s", conflicts[0].WithOccurrenceID, conflicts[1].WithOccurrenceID)
	}
}

func TestDetectConflicts_BackToBackIsClean(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "occ-1", RoomID: "room-1", ParticipantIDs: []string{"alice"}, Window: hourWindow(t, 9)},
	}
	candidate := Booking{
		ID:             "occ-2",
		RoomID:         "room-1",
		ParticipantIDs: []string{"alice"},
		Window:         hourWindow(t, 10),
	}

	if conflicts := DetectConflicts(existing, candidate); len(conflicts) != 0 {
		t.Fatalf("back-to-back bookings must not conflict, got %v", conflicts)
	}
}

func TestDetectConflicts_IgnoresSelf(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "occ-1", RoomID: "room-1", Window: hourWindow(t, 9)},
	}
	candidate := Booking{ID: "occ-1", RoomID: "room-1", Window: hourWindow(t, 9)}

	if conflicts := DetectConflicts(existing, candidate); len(conflicts) != 0 {
		t.Fatalf("a booking never conflicts with itself, got %v", conflicts)
	}
}

func TestDetectConflicts_DifferentResourcesAreClean(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "occ-1", RoomID: "room-1", ParticipantIDs: []string{"alice"}, Window: hourWindow(t, 9)},
	}
	candidate := Booking{
		ID:             "occ-2",
		RoomID:         "room-2",
		ParticipantIDs: []string{"bob"},
		Window:         hourWindow(t, 9),
	}

	if conflicts := DetectConflicts(existing, candidate); len(conflicts) != 0 {
		t.Fatalf("disjoint rooms and rosters must not conflict, got %v", conflicts)
	}
}
