package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/campus-scheduler/internal/application"
	"github.com/example/campus-scheduler/internal/persistence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// SessionServiceDeps captures dependencies for constructing a session service.
type SessionServiceDeps struct {
	Templates    persistence.TemplateRepository
	Store        persistence.ScheduleStore
	Rooms        persistence.RoomRepository
	Participants persistence.ParticipantRepository
	Courses      persistence.CourseDirectory
	IDGenerator  func() string
	Now          func() time.Time
	ExpansionCap int
	Logger       *slog.Logger
}

// NewSessionService builds a session service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewSessionService(deps SessionServiceDeps) *application.SessionService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewSessionServiceWithOptions(
		deps.Templates,
		deps.Store,
		deps.Rooms,
		deps.Participants,
		deps.Courses,
		idGen,
		now,
		deps.ExpansionCap,
		deps.Logger,
	)
}

// OccurrenceServiceDeps captures dependencies for constructing an occurrence
// service.
type OccurrenceServiceDeps struct {
	Store        persistence.ScheduleStore
	Now          func() time.Time
	ReminderLead time.Duration
	Logger       *slog.Logger
}

// NewOccurrenceService builds an occurrence service using the supplied
// dependencies.
func (f *ServiceFactory) NewOccurrenceService(deps OccurrenceServiceDeps) *application.OccurrenceService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewOccurrenceService(
		deps.Store,
		now,
		deps.ReminderLead,
		deps.Logger,
	)
}

// RoomServiceDeps captures dependencies for constructing a room service.
type RoomServiceDeps struct {
	Rooms       persistence.RoomRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewRoomService builds a room service using the supplied dependencies.
func (f *ServiceFactory) NewRoomService(deps RoomServiceDeps) *application.RoomService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewRoomService(
		deps.Rooms,
		idGen,
		now,
		deps.Logger,
	)
}

// ParticipantServiceDeps captures dependencies for constructing a participant
// service.
type ParticipantServiceDeps struct {
	Participants persistence.ParticipantRepository
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewParticipantService builds a participant service using the supplied
// dependencies.
func (f *ServiceFactory) NewParticipantService(deps ParticipantServiceDeps) *application.ParticipantService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewParticipantService(
		deps.Participants,
		idGen,
		now,
		deps.Logger,
	)
}
