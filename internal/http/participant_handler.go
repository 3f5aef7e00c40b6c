package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/campus-scheduler/internal/application"
	"github.com/example/campus-scheduler/internal/persistence"
)

type participantService interface {
	CreateParticipant(ctx context.Context, input application.ParticipantInput) (persistence.Participant, error)
	UpdateParticipant(ctx context.Context, participantID string, input application.ParticipantInput) (persistence.Participant, error)
	GetParticipant(ctx context.Context, participantID string) (persistence.Participant, error)
	DeleteParticipant(ctx context.Context, participantID string) error
	ListParticipants(ctx context.Context) ([]persistence.Participant, error)
}

type ParticipantHandler struct {
	service   participantService
	responder responder
	logger    *slog.Logger
}

func NewParticipantHandler(service participantService, logger *slog.Logger) *ParticipantHandler {
	base := defaultLogger(logger)
	return &ParticipantHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ParticipantHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ParticipantHandler", operation, attrs...)
}

func (h *ParticipantHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "email", req.Email)

	participant, err := h.service.CreateParticipant(r.Context(), req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "participant creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("participant_id", participant.ID).InfoContext(r.Context(), "participant created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, participantResponse{Participant: toParticipantDTO(participant)})
}

func (h *ParticipantHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	participantID, ok := ParticipantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(participantID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipantID)
		return
	}

	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "participant_id", participantID)

	participant, err := h.service.UpdateParticipant(r.Context(), participantID, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "participant update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "participant updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, participantResponse{Participant: toParticipantDTO(participant)})
}

func (h *ParticipantHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	participantID, ok := ParticipantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(participantID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipantID)
		return
	}

	participant, err := h.service.GetParticipant(r.Context(), participantID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, participantResponse{Participant: toParticipantDTO(participant)})
}

func (h *ParticipantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	participantID, ok := ParticipantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(participantID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipantID)
		return
	}

	logger := h.log(r.Context(), "Delete", "participant_id", participantID)
	if err := h.service.DeleteParticipant(r.Context(), participantID); err != nil {
		logger.ErrorContext(r.Context(), "participant delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "participant deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	participants, err := h.service.ListParticipants(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listParticipantsResponse{Participants: toParticipantDTOs(participants)})
}

type participantRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Instructor  bool   `json:"instructor"`
}

func (r participantRequest) toInput() application.ParticipantInput {
	return application.ParticipantInput{
		Email:       strings.TrimSpace(r.Email),
		DisplayName: strings.TrimSpace(r.DisplayName),
		Instructor:  r.Instructor,
	}
}

type participantResponse struct {
	Participant participantDTO `json:"participant"`
}

type listParticipantsResponse struct {
	Participants []participantDTO `json:"participants"`
}

type participantDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Instructor  bool   `json:"instructor"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toParticipantDTO(p persistence.Participant) participantDTO {
	return participantDTO{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Instructor:  p.Instructor,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toParticipantDTOs(participants []persistence.Participant) []participantDTO {
	if len(participants) == 0 {
		return nil
	}
	out := make([]participantDTO, 0, len(participants))
	for _, p := range participants {
		out = append(out, toParticipantDTO(p))
	}
	return out
}
