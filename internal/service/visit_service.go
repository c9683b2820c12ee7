package service

import (
	"context"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/model"
	"github.com/folio-cms/folio/internal/pkg/logger"
	"github.com/google/uuid"
)

const (
	maxPathLength    = 500
	maxTitleLength   = 200
	maxBrowserLength = 50
	maxOSLength      = 100
	maxDeviceLength  = 20
)

type VisitRepo interface {
	Insert(ctx context.Context, rec *model.VisitRecord) error
	DeleteBatchOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteMatching(ctx context.Context, f model.VisitFilter) (int64, error)
	CountMatching(ctx context.Context, f model.VisitFilter) (int64, error)
	Stats(ctx context.Context, now time.Time, adminPrefixes []string, top int) (*model.VisitStats, error)
	List(ctx context.Context, limit int, from, to *time.Time) ([]*model.VisitRecord, error)
}

type VisitService struct {
	repo VisitRepo
	cfg  config.VisitsConfig
	now  func() time.Time
}

func NewVisitService(repo VisitRepo, cfg config.VisitsConfig) *VisitService {
	return &VisitService{repo: repo, cfg: cfg, now: time.Now}
}

// Record stamps and stores one visit.
func (s *VisitService) Record(ctx context.Context, rec *model.VisitRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.VisitedAt.IsZero() {
		rec.VisitedAt = s.now().UTC()
	}
	maxUA := s.cfg.MaxUserAgentLength
	if maxUA <= 0 {
		maxUA = 500
	}
	rec.Path = model.Truncate(rec.Path, maxPathLength)
	rec.Title = model.Truncate(rec.Title, maxTitleLength)
	rec.UserAgent = model.Truncate(rec.UserAgent, maxUA)
	// parsed from the user agent, so bounded only by the column sizes
	rec.Browser = model.Truncate(rec.Browser, maxBrowserLength)
	rec.OS = model.Truncate(rec.OS, maxOSLength)
	rec.Device = model.Truncate(rec.Device, maxDeviceLength)
	return s.repo.Insert(ctx, rec)
}

func (s *VisitService) Stats(ctx context.Context, top int) (*model.VisitStats, error) {
	return s.repo.Stats(ctx, s.now().UTC(), s.cfg.AdminPrefixes, top)
}

func (s *VisitService) List(ctx context.Context, limit int, from, to *time.Time) ([]*model.VisitRecord, error) {
	return s.repo.List(ctx, limit, from, to)
}

// InvalidFilter matches stored visits that the current policy would reject.
func (s *VisitService) InvalidFilter() model.VisitFilter {
	tokens := make([]string, 0, len(s.cfg.BotSignatures)+len(s.cfg.DevToolSignatures))
	tokens = append(tokens, s.cfg.BotSignatures...)
	tokens = append(tokens, s.cfg.DevToolSignatures...)
	return model.VisitFilter{
		PathPrefixes:    s.cfg.ExcludedPrefixes,
		PathContains:    s.cfg.ExcludedPatterns,
		UserAgentTokens: tokens,
		MinUserAgentLen: s.cfg.MinUserAgentLength,
	}
}

// PurgeInvalid deletes (or with dryRun only counts) visits recorded before
// the current exclusion rules were in place.
func (s *VisitService) PurgeInvalid(ctx context.Context, dryRun bool) (int64, error) {
	filter := s.InvalidFilter()
	if dryRun {
		return s.repo.CountMatching(ctx, filter)
	}
	n, err := s.repo.DeleteMatching(ctx, filter)
	if err != nil {
		logger.Error("invalid visit purge failed", "module", "visits", "action", "purge", "error", err)
		return n, err
	}
	logger.Info("invalid visits purged", "module", "visits", "action", "purge", "deleted", n)
	return n, nil
}
