// Package http provides HTTP handlers and middleware for the timetable API.
//
// The router exposes the following endpoints:
//   - GET /sessions, POST /sessions, GET /sessions/{id}, PUT /sessions/{id}:
//     session series management exchanging the `sessionDTO` payload defined in
//     session_handler.go. Create and update expand the recurrence rule, run the
//     conflict detector, and commit the whole series atomically; responses
//     carry advisory conflict warnings when `force` was set.
//   - GET /occurrences?start=&end=&tz=: timetable query over a time range.
//   - GET /occurrences/{id}: a single occurrence with attendance.
//   - POST /occurrences/{id}/reschedule|postpone|cancel|complete: lifecycle
//     operations on one occurrence.
//   - PUT /occurrences/{id}/attendance, GET /occurrences/{id}/attendance:
//     attendance recording and the derived attendance rate.
//   - GET /conflicts?room=&participants=&start=&end=&tz=: non-persisting
//     conflict probe for a hypothetical booking.
//   - GET /reminders: scheduled occurrences starting within the reminder lead.
//   - GET /rooms, POST /rooms, GET/PUT/DELETE /rooms/{id}: room catalog,
//     plus GET /rooms/{id}/timetable?date= for a room's day view.
//   - GET /participants, POST /participants, GET/PUT/DELETE /participants/{id}:
//     participant identity management.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
