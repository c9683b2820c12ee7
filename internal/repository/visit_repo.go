package repository

import (
	"context"
	"strings"
	"time"

	"github.com/folio-cms/folio/internal/model"
	"gorm.io/gorm"
)

type VisitRepo struct {
	db *gorm.DB
}

func NewVisitRepo(db *gorm.DB) *VisitRepo {
	return &VisitRepo{db: db}
}

func (r *VisitRepo) Insert(ctx context.Context, rec *model.VisitRecord) error {
	if rec == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// DeleteBatchOlderThan removes at most limit records visited before cutoff.
func (r *VisitRepo) DeleteBatchOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	db := r.db.WithContext(ctx)
	ids := db.Model(&model.VisitRecord{}).Select("id").Where("visited_at < ?", cutoff).Limit(limit)
	res := db.Where("id IN (?)", ids).Delete(&model.VisitRecord{})
	return res.RowsAffected, res.Error
}

func (r *VisitRepo) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.VisitRecord{}).Where("visited_at < ?", cutoff).Count(&n).Error
	return n, err
}

// DeleteMatching removes records that any rule of the filter matches.
func (r *VisitRepo) DeleteMatching(ctx context.Context, f model.VisitFilter) (int64, error) {
	q, ok := matching(r.db.WithContext(ctx), f)
	if !ok {
		return 0, nil
	}
	res := q.Delete(&model.VisitRecord{})
	return res.RowsAffected, res.Error
}

func (r *VisitRepo) CountMatching(ctx context.Context, f model.VisitFilter) (int64, error) {
	q, ok := matching(r.db.WithContext(ctx).Model(&model.VisitRecord{}), f)
	if !ok {
		return 0, nil
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func matching(db *gorm.DB, f model.VisitFilter) (*gorm.DB, bool) {
	var clauses []string
	var args []any
	for _, p := range f.PathPrefixes {
		clauses = append(clauses, `path LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(p)+"%")
	}
	for _, p := range f.PathContains {
		clauses = append(clauses, `LOWER(path) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(p))+"%")
	}
	for _, tok := range f.UserAgentTokens {
		clauses = append(clauses, `LOWER(user_agent) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(tok))+"%")
	}
	if f.MinUserAgentLen > 0 {
		clauses = append(clauses, "LENGTH(TRIM(user_agent)) < ?")
		args = append(args, f.MinUserAgentLen)
	}
	if len(clauses) == 0 {
		return db, false
	}
	return db.Where(strings.Join(clauses, " OR "), args...), true
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// List returns the newest records first.
func (r *VisitRepo) List(ctx context.Context, limit int, from, to *time.Time) ([]*model.VisitRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Model(&model.VisitRecord{})
	if from != nil {
		q = q.Where("visited_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("visited_at <= ?", *to)
	}
	var out []*model.VisitRecord
	err := q.Order("visited_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Stats aggregates the table relative to now. Paths under adminPrefixes
// are counted as admin traffic and left out of the top list.
func (r *VisitRepo) Stats(ctx context.Context, now time.Time, adminPrefixes []string, top int) (*model.VisitStats, error) {
	db := r.db.WithContext(ctx)
	stats := &model.VisitStats{TopPaths: []model.PathCount{}}

	count := func(q *gorm.DB, dst *int64) error {
		return q.Count(dst).Error
	}
	base := func() *gorm.DB { return db.Model(&model.VisitRecord{}) }

	if err := count(base(), &stats.Total); err != nil {
		return nil, err
	}
	if stats.Total == 0 {
		return stats, nil
	}

	adminQ, hasAdmin := matching(base(), model.VisitFilter{PathPrefixes: adminPrefixes})
	if hasAdmin {
		if err := count(adminQ, &stats.Admin); err != nil {
			return nil, err
		}
	}
	stats.Public = stats.Total - stats.Admin

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windows := []struct {
		since time.Time
		dst   *int64
	}{
		{startOfDay, &stats.Today},
		{now.AddDate(0, 0, -7), &stats.LastWeek},
		{now.AddDate(0, 0, -30), &stats.LastMonth},
	}
	for _, w := range windows {
		if err := count(base().Where("visited_at >= ?", w.since), w.dst); err != nil {
			return nil, err
		}
	}

	if err := base().Distinct("ip").Count(&stats.UniqueIPs).Error; err != nil {
		return nil, err
	}

	if top > 0 {
		q := base().Select("path, COUNT(*) AS count")
		for _, p := range adminPrefixes {
			q = q.Where(`path NOT LIKE ? ESCAPE '\'`, escapeLike(p)+"%")
		}
		if err := q.Group("path").Order("count DESC, path ASC").Limit(top).Scan(&stats.TopPaths).Error; err != nil {
			return nil, err
		}
	}

	var oldest, newest model.VisitRecord
	if err := base().Order("visited_at ASC").Limit(1).Take(&oldest).Error; err != nil {
		return nil, err
	}
	if err := base().Order("visited_at DESC").Limit(1).Take(&newest).Error; err != nil {
		return nil, err
	}
	stats.OldestVisit = &oldest.VisitedAt
	stats.NewestVisit = &newest.VisitedAt
	return stats, nil
}
