package assignment

import (
	"context"
	"log/slog"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/metrics"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/arnavshah/readiness-api-go/pkg/store"
)

const defaultSweepBatch = 500

// Sweeper moves pending assignments past their deadline to overdue. It keeps
// no state between runs and may run concurrently with itself: every row is
// moved by a conditional update, so a row is counted by exactly one caller.
type Sweeper struct {
	store     *store.Store
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
	loc       *time.Location
	batchSize int
}

// NewSweeper creates a sweeper over st
func NewSweeper(st *store.Store, m *metrics.Collector, logger *slog.Logger, now func() time.Time, loc *time.Location) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{store: st, metrics: m, logger: logger, now: now, loc: loc, batchSize: defaultSweepBatch}
}

// Sweep transitions every qualifying assignment and returns how many this call moved.
// Rows already moved by a concurrent completion or sweep are skipped silently.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	started := time.Now()
	now := s.now()
	transitioned := 0

	for {
		ids, err := s.store.ExpiredPendingIDs(ctx, now, s.batchSize)
		if err != nil {
			return transitioned, err
		}

		moved := 0
		for _, id := range ids {
			applied, err := s.store.MarkOverdueIfPending(ctx, id, now)
			if err != nil {
				s.logger.Error("sweep update failed", "assignment_id", id, "error", err)
				continue
			}
			if applied {
				moved++
				s.metrics.Transition(string(models.StatusOverdue), true)
			}
		}
		transitioned += moved

		// a short page means nothing is left; a page with no progress means
		// the remaining rows keep failing and retrying would spin
		if len(ids) < s.batchSize || moved == 0 {
			break
		}
	}

	if err := s.store.RecordSweep(ctx, models.DateIn(now, s.loc), transitioned); err != nil {
		s.logger.Warn("could not record sweep stats", "error", err)
	}
	s.metrics.Sweep(transitioned, time.Since(started).Seconds())
	s.logger.Info("overdue sweep finished", "transitioned", transitioned)
	return transitioned, nil
}

// Run sweeps every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("overdue sweep failed", "error", err)
			}
		}
	}
}
