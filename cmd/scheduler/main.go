package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/campus-scheduler/internal/application"
	"github.com/example/campus-scheduler/internal/config"
	httptransport "github.com/example/campus-scheduler/internal/http"
	"github.com/example/campus-scheduler/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	sessionService := application.NewSessionServiceWithOptions(
		storage.Templates,
		storage.Occurrences,
		storage.Rooms,
		storage.Participants,
		storage.Courses,
		idGenerator,
		now,
		cfg.ExpansionCap,
		logger,
	)
	occurrenceService := application.NewOccurrenceService(storage.Occurrences, now, cfg.ReminderLead, logger)
	roomService := application.NewRoomService(storage.Rooms, idGenerator, now, logger)
	participantService := application.NewParticipantService(storage.Participants, idGenerator, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Sessions:     httptransport.NewSessionHandler(sessionService, logger),
		Occurrences:  httptransport.NewOccurrenceHandler(occurrenceService, cfg.Timezone, logger),
		Rooms:        httptransport.NewRoomHandler(roomService, occurrenceService, cfg.Timezone, logger),
		Participants: httptransport.NewParticipantHandler(participantService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})

	go runLifecycleSweeper(ctx, occurrenceService, cfg.SweepInterval, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("timetable API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// runLifecycleSweeper advances occurrence statuses on a fixed interval until
// the context is cancelled.
func runLifecycleSweeper(ctx context.Context, service *application.OccurrenceService, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			advanced, err := service.Sweep(ctx)
			if err != nil {
				logger.Error("lifecycle sweep failed", "error", err)
				continue
			}
			if advanced > 0 {
				logger.Info("lifecycle sweep advanced occurrences", "count", advanced)
			}
		}
	}
}
