// Package housekeeping periodically removes stored sessions whose access
// token expired more than the retention window ago. A running dashboard
// refreshes its row well before that, so only idle sessions are removed,
// together with their sealed refresh tokens. The user then signs in again.
package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"github.com/scrum0/scrum0/internal/auth/store"
)

const (
	DefaultInterval  = time.Hour
	DefaultRetention = 30 * 24 * time.Hour
)

type Service struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	// Now is the clock used to compute the cutoff. Tests may replace it.
	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New returns a stopped service. Non-positive durations select the defaults.
func New(st store.Store, logger *slog.Logger, interval, retention time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		Now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs a sweep immediately and then every Interval until Stop.
func (s *Service) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "retention", s.Retention)
}

// Stop blocks until an in-progress sweep has finished.
func (s *Service) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *Service) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep deletes sessions that expired more than Retention ago and returns
// how many were removed. Failures are logged, never returned.
func (s *Service) Sweep(ctx context.Context) int64 {
	cutoff := s.Now().Add(-s.Retention)

	n, err := s.Store.Sessions().DeleteSessionsExpiredBefore(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
		return 0
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted_sessions", n, "cutoff", cutoff)
	return n
}
