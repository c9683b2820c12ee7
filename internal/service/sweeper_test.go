package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/model"
	"github.com/folio-cms/folio/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRemovesOnlyExpiredVisits(t *testing.T) {
	repo := repository.NewVisitRepo(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, age := range []int{91, 89} {
		require.NoError(t, repo.Insert(ctx, &model.VisitRecord{
			ID:        fmt.Sprintf("visit-%d", age),
			Path:      "/projects/",
			UserAgent: "Mozilla/5.0",
			VisitedAt: now.AddDate(0, 0, -age),
		}))
	}

	sweeper := NewRetentionSweeper(repo, config.VisitsConfig{RetentionDays: 90, SweepBatchSize: 100})
	sweeper.now = func() time.Time { return now }

	preview, err := sweeper.Preview(ctx)
	require.NoError(t, err)
	assert.True(t, preview.DryRun)
	assert.Equal(t, int64(1), preview.Deleted)

	res, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Deleted)
	assert.True(t, res.Cutoff.Equal(now.AddDate(0, 0, -90)))

	left, err := repo.List(ctx, 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.True(t, left[0].VisitedAt.Equal(now.AddDate(0, 0, -89)))

	// a second run with nothing new to expire deletes nothing
	res, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Deleted)
}

func TestSweepWorksInBatches(t *testing.T) {
	repo := repository.NewVisitRepo(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < 7; i++ {
		require.NoError(t, repo.Insert(ctx, &model.VisitRecord{
			ID:        fmt.Sprintf("old-%d", i),
			Path:      "/",
			VisitedAt: now.AddDate(0, 0, -200),
		}))
	}

	sweeper := NewRetentionSweeper(repo, config.VisitsConfig{RetentionDays: 180, SweepBatchSize: 3})
	res, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Deleted)
}

type flakySweepStore struct {
	batches []int64
	failAt  int
	calls   int
}

func (s *flakySweepStore) DeleteBatchOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	defer func() { s.calls++ }()
	if s.calls == s.failAt {
		return 0, errors.New("database is locked")
	}
	return s.batches[s.calls], nil
}

func (s *flakySweepStore) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestSweepReportsPartialProgress(t *testing.T) {
	store := &flakySweepStore{batches: []int64{10, 10}, failAt: 2}
	sweeper := NewRetentionSweeper(store, config.VisitsConfig{RetentionDays: 30, SweepBatchSize: 10})

	res, err := sweeper.Sweep(context.Background())
	require.Error(t, err)

	var sweepErr *SweepError
	require.True(t, errors.As(err, &sweepErr))
	assert.Equal(t, int64(20), sweepErr.Deleted)
	assert.Equal(t, int64(20), res.Deleted)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestSweepHonoursCancellation(t *testing.T) {
	store := &flakySweepStore{batches: []int64{10}, failAt: -1}
	sweeper := NewRetentionSweeper(store, config.VisitsConfig{RetentionDays: 30, SweepBatchSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sweeper.Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.calls)
}

func TestWithHorizon(t *testing.T) {
	sweeper := NewRetentionSweeper(&flakySweepStore{}, config.VisitsConfig{RetentionDays: 180})
	short := sweeper.WithHorizon(24 * time.Hour)
	assert.Equal(t, 180*24*time.Hour, sweeper.Horizon())
	assert.Equal(t, 24*time.Hour, short.Horizon())
}

func TestSchedulerSweepsOnTick(t *testing.T) {
	repo := repository.NewVisitRepo(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &model.VisitRecord{ID: "stale", Path: "/", VisitedAt: time.Now().UTC().AddDate(-1, 0, 0)}))

	sweeper := NewRetentionSweeper(repo, config.VisitsConfig{RetentionDays: 30, SweepBatchSize: 10})
	sched := NewScheduler(sweeper, 20*time.Millisecond)
	sched.Start()

	assert.Eventually(t, func() bool {
		n, err := repo.CountOlderThan(ctx, time.Now().UTC())
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
	sched.Stop()
}
