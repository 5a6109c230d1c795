package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/store"
)

// SessionPruner drops resolver sessions idle for longer than the given age.
type SessionPruner interface {
	Prune(olderThan time.Duration) int
}

// HousekeepingService periodically trims the login attempt audit trail and
// idle client identity sessions.
type HousekeepingService struct {
	Store      store.Store
	Sessions   SessionPruner // may be nil
	Logger     *slog.Logger
	Interval   time.Duration
	Retention  time.Duration // audit rows older than this are deleted
	SessionTTL time.Duration

	Now func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service. A non-positive
// interval defaults to 1 hour.
func NewHousekeepingService(st store.Store, sessions SessionPruner, logger *slog.Logger, interval, retention, sessionTTL time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:      st,
		Sessions:   sessions,
		Logger:     logger,
		Interval:   interval,
		Retention:  retention,
		SessionTTL: sessionTTL,
		Now:        time.Now,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each step is independent; a failure in one does not
// stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	s.Logger.Debug("starting housekeeping cleanup")

	if s.Retention > 0 {
		cutoff := s.Now().Add(-s.Retention)
		n, err := s.Store.LoginAttempts().DeleteLoginAttemptsBefore(ctx, cutoff)
		if err != nil {
			s.Logger.Error("failed to delete old login attempts", "error", err)
		} else {
			s.Logger.Debug("deleted old login attempts", "count", n, "cutoff", cutoff)
		}
	}

	if s.Sessions != nil && s.SessionTTL > 0 {
		n := s.Sessions.Prune(s.SessionTTL)
		s.Logger.Debug("pruned idle identity sessions", "count", n)
	}

	s.Logger.Info("housekeeping cleanup completed")
}
