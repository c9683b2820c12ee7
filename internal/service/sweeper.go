package service

import (
	"context"
	"fmt"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/pkg/logger"
	"github.com/folio-cms/folio/internal/pkg/metrics"
)

type SweepStore interface {
	DeleteBatchOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type SweepResult struct {
	Cutoff   time.Time     `json:"cutoff"`
	Deleted  int64         `json:"deleted"`
	DryRun   bool          `json:"dry_run"`
	Duration time.Duration `json:"duration_ns"`
}

// SweepError reports a sweep that stopped early. Deleted counts the rows
// removed before the failure.
type SweepError struct {
	Deleted int64
	Err     error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("visit sweep failed after deleting %d records: %v", e.Deleted, e.Err)
}

func (e *SweepError) Unwrap() error {
	return e.Err
}

// RetentionSweeper deletes visit records older than the retention horizon.
// Re-running it only touches rows that still qualify.
type RetentionSweeper struct {
	store     SweepStore
	horizon   time.Duration
	batchSize int
	now       func() time.Time
}

func NewRetentionSweeper(store SweepStore, cfg config.VisitsConfig) *RetentionSweeper {
	batch := cfg.SweepBatchSize
	if batch <= 0 {
		batch = 1000
	}
	return &RetentionSweeper{
		store:     store,
		horizon:   cfg.Retention(),
		batchSize: batch,
		now:       time.Now,
	}
}

// WithHorizon returns a copy using a different horizon.
func (s *RetentionSweeper) WithHorizon(horizon time.Duration) *RetentionSweeper {
	cp := *s
	cp.horizon = horizon
	return &cp
}

func (s *RetentionSweeper) Horizon() time.Duration {
	return s.horizon
}

func (s *RetentionSweeper) cutoff() time.Time {
	return s.now().UTC().Add(-s.horizon)
}

func (s *RetentionSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	res := SweepResult{Cutoff: s.cutoff()}

	for {
		if err := ctx.Err(); err != nil {
			return s.fail(res, start, err)
		}
		n, err := s.store.DeleteBatchOlderThan(ctx, res.Cutoff, s.batchSize)
		res.Deleted += n
		metrics.VisitsSwept.Add(float64(n))
		if err != nil {
			return s.fail(res, start, err)
		}
		if n < int64(s.batchSize) {
			break
		}
	}

	res.Duration = time.Since(start)
	logger.Info("visit retention sweep completed", "module", "sweeper", "action", "sweep", "result", "ok",
		"deleted", res.Deleted, "cutoff", res.Cutoff, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (s *RetentionSweeper) fail(res SweepResult, start time.Time, err error) (SweepResult, error) {
	res.Duration = time.Since(start)
	logger.Error("visit retention sweep failed", "module", "sweeper", "action", "sweep", "result", "failed",
		"deleted", res.Deleted, "cutoff", res.Cutoff, "error", err)
	return res, &SweepError{Deleted: res.Deleted, Err: err}
}

// Preview counts what Sweep would delete.
func (s *RetentionSweeper) Preview(ctx context.Context) (SweepResult, error) {
	res := SweepResult{Cutoff: s.cutoff(), DryRun: true}
	n, err := s.store.CountOlderThan(ctx, res.Cutoff)
	if err != nil {
		return res, err
	}
	res.Deleted = n
	return res, nil
}
