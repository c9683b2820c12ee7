package repository

import (
	"context"
	"testing"
	"time"

	"github.com/folio-cms/folio/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertVisit(t *testing.T, repo *VisitRepo, path, ua string, at time.Time) {
	t.Helper()
	require.NoError(t, repo.Insert(context.Background(), &model.VisitRecord{
		ID:        uuid.NewString(),
		Path:      path,
		IP:        "203.0.113.7",
		UserAgent: ua,
		VisitedAt: at.UTC(),
	}))
}

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0"

func TestDeleteBatchOlderThan(t *testing.T) {
	repo := NewVisitRepo(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		insertVisit(t, repo, "/old", browserUA, now.AddDate(0, 0, -100-i))
	}
	insertVisit(t, repo, "/fresh", browserUA, now.Add(-time.Hour))

	cutoff := now.AddDate(0, 0, -90)
	n, err := repo.CountOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	deleted, err := repo.DeleteBatchOlderThan(ctx, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = repo.DeleteBatchOlderThan(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	deleted, err = repo.DeleteBatchOlderThan(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	left, err := repo.List(ctx, 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "/fresh", left[0].Path)
}

func TestDeleteMatching(t *testing.T) {
	repo := NewVisitRepo(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	insertVisit(t, repo, "/admin/login", browserUA, now)
	insertVisit(t, repo, "/blog/1", "Googlebot/2.1 (+http://www.google.com/bot.html)", now)
	insertVisit(t, repo, "/app.js.map", browserUA, now)
	insertVisit(t, repo, "/projects", "short", now)
	insertVisit(t, repo, "/projects_x", browserUA, now)
	insertVisit(t, repo, "/", browserUA, now)

	filter := model.VisitFilter{
		PathPrefixes:    []string{"/admin/", "/projects_"},
		PathContains:    []string{".map"},
		UserAgentTokens: []string{"googlebot"},
		MinUserAgentLen: 10,
	}

	n, err := repo.CountMatching(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	deleted, err := repo.DeleteMatching(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)

	left, err := repo.List(ctx, 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "/", left[0].Path)

	deleted, err = repo.DeleteMatching(ctx, model.VisitFilter{})
	require.NoError(t, err)
	assert.Zero(t, deleted, "an empty filter matches nothing")
}

func TestLikeEscapesWildcards(t *testing.T) {
	repo := NewVisitRepo(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	insertVisit(t, repo, "/projectsX", browserUA, now)

	n, err := repo.CountMatching(ctx, model.VisitFilter{PathPrefixes: []string{"/projects_"}})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListWindow(t *testing.T) {
	repo := NewVisitRepo(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	insertVisit(t, repo, "/a", browserUA, now.Add(-3*time.Hour))
	insertVisit(t, repo, "/b", browserUA, now.Add(-2*time.Hour))
	insertVisit(t, repo, "/c", browserUA, now.Add(-1*time.Hour))

	from := now.Add(-150 * time.Minute)
	out, err := repo.List(ctx, 10, &from, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "/c", out[0].Path)
	assert.Equal(t, "/b", out[1].Path)
}

func TestStats(t *testing.T) {
	repo := NewVisitRepo(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	insertVisit(t, repo, "/", browserUA, now.Add(-time.Hour))
	insertVisit(t, repo, "/", browserUA, now.Add(-2*time.Hour))
	insertVisit(t, repo, "/blog/", browserUA, now.AddDate(0, 0, -3))
	insertVisit(t, repo, "/admin/", browserUA, now.AddDate(0, 0, -20))
	insertVisit(t, repo, "/resume/", browserUA, now.AddDate(0, 0, -60))

	stats, err := repo.Stats(ctx, now, []string{"/admin/"}, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(1), stats.Admin)
	assert.Equal(t, int64(4), stats.Public)
	assert.Equal(t, int64(2), stats.Today)
	assert.Equal(t, int64(3), stats.LastWeek)
	assert.Equal(t, int64(4), stats.LastMonth)
	assert.Equal(t, int64(1), stats.UniqueIPs)
	require.Len(t, stats.TopPaths, 2)
	assert.Equal(t, model.PathCount{Path: "/", Count: 2}, stats.TopPaths[0])
	require.NotNil(t, stats.OldestVisit)
	assert.True(t, stats.OldestVisit.Equal(now.AddDate(0, 0, -60)))
}

func TestStatsEmpty(t *testing.T) {
	repo := NewVisitRepo(newTestDB(t))
	stats, err := repo.Stats(context.Background(), time.Now().UTC(), []string{"/admin/"}, 5)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Empty(t, stats.TopPaths)
	assert.Nil(t, stats.OldestVisit)
}
