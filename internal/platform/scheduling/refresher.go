// Package scheduling runs background maintenance jobs on a cron schedule.
package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SnapshotJob recomputes the stored pregnancy week and trimester of every
// dated mother.
type SnapshotJob interface {
	RefreshSnapshots(ctx context.Context) (updated, failed int, err error)
}

// Refresher triggers a SnapshotJob on a cron schedule. A Refresher built
// with an empty schedule is disabled; Start and Stop are then no-ops.
type Refresher struct {
	job      SnapshotJob
	schedule string
	timeout  time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	lastRun time.Time
}

// DefaultRunTimeout bounds a single refresh pass.
const DefaultRunTimeout = 10 * time.Minute

// NewRefresher validates schedule (standard five-field cron or a descriptor
// such as "@daily").
func NewRefresher(schedule string, job SnapshotJob, logger zerolog.Logger) (*Refresher, error) {
	r := &Refresher{job: job, schedule: schedule, timeout: DefaultRunTimeout, logger: logger}
	if schedule == "" {
		return r, nil
	}

	cronLog := cron.PrintfLogger(&r.logger)
	c := cron.New(cron.WithLogger(cronLog), cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))
	id, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.RunOnce(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot refresh schedule %q: %w", schedule, err)
	}
	r.cron, r.entry = c, id
	return r, nil
}

func (r *Refresher) Enabled() bool { return r.cron != nil }

func (r *Refresher) Start() {
	if r.cron == nil {
		r.logger.Info().Msg("snapshot refresh disabled")
		return
	}
	r.cron.Start()
	r.logger.Info().Str("schedule", r.schedule).Time("next", r.Next()).Msg("snapshot refresh scheduled")
}

// Stop halts the schedule and waits for a running pass to finish or for
// ctx to expire.
func (r *Refresher) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports when the job fires next; zero when disabled or not started.
func (r *Refresher) Next() time.Time {
	if r.cron == nil {
		return time.Time{}
	}
	return r.cron.Entry(r.entry).Next
}

func (r *Refresher) LastRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}

// RunOnce performs a single refresh pass and logs its outcome.
func (r *Refresher) RunOnce(ctx context.Context) (updated, failed int, err error) {
	start := time.Now()
	updated, failed, err = r.job.RefreshSnapshots(ctx)

	r.mu.Lock()
	r.lastRun = start
	r.mu.Unlock()

	ev := r.logger.Info()
	if err != nil {
		ev = r.logger.Error().Err(err)
	} else if failed > 0 {
		ev = r.logger.Warn()
	}
	ev.Int("updated", updated).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("snapshot refresh finished")
	return updated, failed, err
}
