package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randomlysa/hangman-api/internal/config"
	"github.com/randomlysa/hangman-api/internal/email"
	"github.com/randomlysa/hangman-api/internal/postgres"
	"github.com/randomlysa/hangman-api/internal/service"
)

// JobRunner handles periodic background jobs: refreshing cached game
// stats and rankings, and reminding users about unfinished games.
type JobRunner struct {
	service  *service.GameService
	postgres *postgres.Repository
	mailer   *email.Sender
	config   *config.JobsConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewJobRunner creates a new job runner
func NewJobRunner(
	svc *service.GameService,
	pg *postgres.Repository,
	mailer *email.Sender,
	cfg *config.JobsConfig,
	logger *slog.Logger,
) *JobRunner {
	return &JobRunner{
		service:  svc,
		postgres: pg,
		mailer:   mailer,
		config:   cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background job loop
func (w *JobRunner) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("job runner started",
		"cache_refresh_interval", w.config.CacheRefreshInterval,
		"reminder_interval", w.config.ReminderInterval,
		"reminders_enabled", w.config.RemindersEnabled,
	)

	go w.run(ctx)
	return nil
}

// Stop stops the background job loop
func (w *JobRunner) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("job runner stopped")
	return nil
}

// run is the main worker loop
func (w *JobRunner) run(ctx context.Context) {
	defer close(w.doneCh)

	cacheTicker := time.NewTicker(w.config.CacheRefreshInterval)
	defer cacheTicker.Stop()

	reminderTicker := time.NewTicker(w.config.ReminderInterval)
	defer reminderTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-cacheTicker.C:
			w.RefreshCaches(ctx)
		case <-reminderTicker.C:
			w.SendReminders(ctx)
		}
	}
}

// RefreshCaches recomputes the cached average attempts and rebuilds the
// cached rankings from the store.
func (w *JobRunner) RefreshCaches(ctx context.Context) {
	startTime := time.Now()

	avg, err := w.service.RefreshAverageAttempts(ctx)
	if err != nil {
		w.logger.Error("failed to refresh average attempts", "error", err)
	} else {
		w.logger.Debug("refreshed average attempts", "average", avg)
	}

	if err := w.service.RefreshRankCache(ctx); err != nil {
		w.logger.Error("failed to refresh rank cache", "error", err)
	}

	w.logger.Info("cache refresh completed", "duration", time.Since(startTime))
}

// SendReminders emails every user who has an email address and at
// least one unfinished game.
func (w *JobRunner) SendReminders(ctx context.Context) {
	if !w.config.RemindersEnabled || w.mailer == nil || !w.mailer.Enabled() {
		return
	}

	startTime := time.Now()

	users, err := w.postgres.ListUsersWithEmail(ctx)
	if err != nil {
		w.logger.Error("failed to list users for reminders", "error", err)
		return
	}

	sentCount := 0
	errorCount := 0

	for _, user := range users {
		count, err := w.postgres.CountUnfinishedGames(ctx, user.ID)
		if err != nil {
			w.logger.Error("failed to count unfinished games",
				"user_id", user.ID,
				"error", err,
			)
			errorCount++
			continue
		}
		if count == 0 {
			continue
		}

		if err := w.mailer.SendReminder(ctx, user, count); err != nil {
			w.logger.Error("failed to send reminder",
				"user_id", user.ID,
				"error", err,
			)
			errorCount++
		} else {
			sentCount++
		}
	}

	w.logger.Info("reminder cycle completed",
		"duration", time.Since(startTime),
		"sent", sentCount,
		"errors", errorCount,
	)
}

// IsRunning returns whether the worker is currently running
func (w *JobRunner) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single pass of every job (useful for manual triggers)
func (w *JobRunner) RunOnce(ctx context.Context) {
	w.RefreshCaches(ctx)
	w.SendReminders(ctx)
}
