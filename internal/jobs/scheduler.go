package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SessionExpirer is the part of the session store the sweep needs.
type SessionExpirer interface {
	ExpireIfStale(ctx context.Context, now time.Time) bool
}

// Scheduler runs the periodic session-expiry sweep so a client left open
// stops presenting a token the backend no longer accepts.
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionExpirer
	spec     string
	log      zerolog.Logger
	now      func() time.Time
}

// NewScheduler takes a standard cron spec or a descriptor such as
// "@every 1m".
func NewScheduler(sessions SessionExpirer, spec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		sessions: sessions,
		spec:     spec,
		log:      log.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.sessions == nil || s.spec == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.sweepSessions); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and returns a context that is done once a running
// sweep has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.sessions.ExpireIfStale(ctx, s.now()) {
		s.log.Info().Msg("expired session logged out")
	}
}
