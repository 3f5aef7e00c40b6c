package http

import "context"

type contextKey string

const (
	sessionIDContextKey     contextKey = "session_id"
	occurrenceIDContextKey  contextKey = "occurrence_id"
	roomIDContextKey        contextKey = "room_id"
	participantIDContextKey contextKey = "participant_id"
)

// ContextWithSessionID injects the session template identifier resolved from the request path.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, id)
}

// SessionIDFromContext extracts a session template identifier previously associated with the context.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok
}

// ContextWithOccurrenceID injects the occurrence identifier resolved from the request path.
func ContextWithOccurrenceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, occurrenceIDContextKey, id)
}

// OccurrenceIDFromContext extracts an occurrence identifier previously associated with the context.
func OccurrenceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(occurrenceIDContextKey).(string)
	return id, ok
}

// ContextWithRoomID injects the room identifier resolved from the request path.
func ContextWithRoomID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, roomIDContextKey, id)
}

// RoomIDFromContext extracts a room identifier previously associated with the context.
func RoomIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(roomIDContextKey).(string)
	return id, ok
}

// ContextWithParticipantID injects the participant identifier resolved from the request path.
func ContextWithParticipantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, participantIDContextKey, id)
}

// ParticipantIDFromContext extracts a participant identifier previously associated with the context.
func ParticipantIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(participantIDContextKey).(string)
	return id, ok
}
