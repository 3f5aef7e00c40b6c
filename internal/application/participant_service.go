package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
)

// ParticipantService orchestrates validation and persistence for participant
// identities.
type ParticipantService struct {
	participants persistence.ParticipantRepository
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewParticipantService constructs a participant service with the provided dependencies.
func NewParticipantService(participants persistence.ParticipantRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ParticipantService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ParticipantService{
		participants: participants,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *ParticipantService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ParticipantService", operation, attrs...)
}

// CreateParticipant validates input and persists a new participant.
func (s *ParticipantService) CreateParticipant(ctx context.Context, input ParticipantInput) (participant persistence.Participant, err error) {
	if s == nil {
		err = fmt.Errorf("ParticipantService is nil")
		return
	}
	if s.participants == nil {
		err = fmt.Errorf("participant repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateParticipant", "email", input.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create participant", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("participant_id", participant.ID).InfoContext(ctx, "participant created")
	}()

	vErr := validateParticipantInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	participant = persistence.Participant{
		ID:          s.idGenerator(),
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Instructor:  input.Instructor,
		CreatedAt:   s.now(),
	}
	participant.UpdatedAt = participant.CreatedAt

	if err = s.participants.CreateParticipant(ctx, participant); err != nil {
		err = mapRepoError(err)
		return
	}
	return
}

// UpdateParticipant validates input and updates an existing participant.
func (s *ParticipantService) UpdateParticipant(ctx context.Context, participantID string, input ParticipantInput) (participant persistence.Participant, err error) {
	if s == nil {
		err = fmt.Errorf("ParticipantService is nil")
		return
	}
	if s.participants == nil {
		err = fmt.Errorf("participant repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateParticipant", "participant_id", participantID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update participant", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "participant updated")
	}()

	var existing persistence.Participant
	existing, err = s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	vErr := validateParticipantInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Email = strings.ToLower(strings.TrimSpace(input.Email))
	updated.DisplayName = strings.TrimSpace(input.DisplayName)
	updated.Instructor = input.Instructor
	updated.UpdatedAt = s.now()

	if err = s.participants.UpdateParticipant(ctx, updated); err != nil {
		err = mapRepoError(err)
		return
	}
	participant = updated
	return
}

// GetParticipant loads a single participant.
func (s *ParticipantService) GetParticipant(ctx context.Context, participantID string) (persistence.Participant, error) {
	if s == nil {
		return persistence.Participant{}, fmt.Errorf("ParticipantService is nil")
	}
	participant, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		return persistence.Participant{}, mapRepoError(err)
	}
	return participant, nil
}

// DeleteParticipant removes a participant identity.
func (s *ParticipantService) DeleteParticipant(ctx context.Context, participantID string) error {
	if s == nil {
		return fmt.Errorf("ParticipantService is nil")
	}
	if s.participants == nil {
		return fmt.Errorf("participant repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteParticipant", "participant_id", participantID)

	if err := s.participants.DeleteParticipant(ctx, participantID); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to delete participant", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "participant deleted")
	return nil
}

// ListParticipants returns all participants sorted by display name.
func (s *ParticipantService) ListParticipants(ctx context.Context) (participants []persistence.Participant, err error) {
	if s == nil {
		err = fmt.Errorf("ParticipantService is nil")
		return
	}
	if s.participants == nil {
		return nil, nil
	}

	var raw []persistence.Participant
	raw, err = s.participants.ListParticipants(ctx)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	participants = make([]persistence.Participant, len(raw))
	copy(participants, raw)

	sort.Slice(participants, func(i, j int) bool {
		if strings.EqualFold(participants[i].DisplayName, participants[j].DisplayName) {
			return participants[i].ID < participants[j].ID
		}
		return strings.ToLower(participants[i].DisplayName) < strings.ToLower(participants[j].DisplayName)
	})

	return
}

func validateParticipantInput(input ParticipantInput) *ValidationError {
	vErr := &ValidationError{}

	email := strings.TrimSpace(input.Email)
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "must be a valid email address")
	}
	if strings.TrimSpace(input.DisplayName) == "" {
		vErr.add("display_name", "display name is required")
	}

	return vErr
}
