package repository

import (
	"context"
	"errors"
	"time"

	"github.com/folio-cms/folio/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

type ContentRepo struct {
	db *gorm.DB
}

func NewContentRepo(db *gorm.DB) *ContentRepo {
	return &ContentRepo{db: db}
}

func (r *ContentRepo) CreateEntity(ctx context.Context, e *model.Entity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(e).Error
}

func (r *ContentRepo) TouchEntity(ctx context.Context, id uint, slug string) error {
	return r.db.WithContext(ctx).Model(&model.Entity{}).Where("id = ?", id).
		Updates(map[string]any{"slug": slug, "updated_at": time.Now().UTC()}).Error
}

func (r *ContentRepo) GetEntity(ctx context.Context, id uint) (*model.Entity, error) {
	var e model.Entity
	err := r.db.WithContext(ctx).First(&e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ContentRepo) ListEntities(ctx context.Context, kind model.Kind) ([]*model.Entity, error) {
	q := r.db.WithContext(ctx).Model(&model.Entity{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var out []*model.Entity
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// DeleteEntity removes the entity and its field rows.
func (r *ContentRepo) DeleteEntity(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entity_id = ?", id).Delete(&model.TranslatableField{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Entity{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Fields returns every row of an entity ordered by language then field.
func (r *ContentRepo) Fields(ctx context.Context, entityID uint) ([]*model.TranslatableField, error) {
	var out []*model.TranslatableField
	err := r.db.WithContext(ctx).Where("entity_id = ?", entityID).
		Order("language ASC, field ASC").Find(&out).Error
	return out, err
}

func (r *ContentRepo) Field(ctx context.Context, entityID uint, field, lang string) (*model.TranslatableField, error) {
	var row model.TranslatableField
	err := r.db.WithContext(ctx).
		Where("entity_id = ? AND field = ? AND language = ?", entityID, field, lang).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertSource writes a source-language value and reports whether it changed.
// A newly created row counts as changed.
func (r *ContentRepo) UpsertSource(ctx context.Context, entityID uint, field, lang, value string) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.TranslatableField
		err := tx.Where("entity_id = ? AND field = ? AND language = ?", entityID, field, lang).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			changed = true
			return tx.Create(&model.TranslatableField{
				EntityID: entityID,
				Field:    field,
				Language: lang,
				Value:    value,
				Status:   model.StatusNotApplicable,
			}).Error
		}
		if err != nil {
			return err
		}
		if row.Value == value {
			return nil
		}
		changed = true
		return tx.Model(&row).Updates(map[string]any{"value": value, "updated_at": time.Now().UTC()}).Error
	})
	return changed, err
}

func (r *ContentRepo) ensureRow(db *gorm.DB, entityID uint, field, lang string) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.TranslatableField{
		EntityID: entityID,
		Field:    field,
		Language: lang,
		Status:   model.StatusNotApplicable,
	}).Error
}

// MarkPending starts a new cycle for a target row waiting on sourceHash.
// Manual rows are left alone; the result reports whether the row was marked.
func (r *ContentRepo) MarkPending(ctx context.Context, entityID uint, field, lang, sourceHash string) (bool, error) {
	return r.setState(ctx, entityID, field, lang, map[string]any{
		"status":      model.StatusPending,
		"source_hash": sourceHash,
		"last_error":  "",
	})
}

// MarkNotApplicable is used for disabled languages and untranslatable fields.
func (r *ContentRepo) MarkNotApplicable(ctx context.Context, entityID uint, field, lang string) (bool, error) {
	return r.setState(ctx, entityID, field, lang, map[string]any{
		"status":      model.StatusNotApplicable,
		"source_hash": "",
		"last_error":  "",
	})
}

func (r *ContentRepo) setState(ctx context.Context, entityID uint, field, lang string, values map[string]any) (bool, error) {
	db := r.db.WithContext(ctx)
	if err := r.ensureRow(db, entityID, field, lang); err != nil {
		return false, err
	}
	values["updated_at"] = time.Now().UTC()
	res := db.Model(&model.TranslatableField{}).
		Where("entity_id = ? AND field = ? AND language = ? AND manual = ?", entityID, field, lang, false).
		Updates(values)
	return res.RowsAffected > 0, res.Error
}

// Pending lists the pending target rows of an entity.
func (r *ContentRepo) Pending(ctx context.Context, entityID uint) ([]*model.TranslatableField, error) {
	var out []*model.TranslatableField
	err := r.db.WithContext(ctx).
		Where("entity_id = ? AND status = ? AND manual = ?", entityID, model.StatusPending, false).
		Find(&out).Error
	return out, err
}

// Complete stores the outcome of one attempt. The write only lands while the
// row is still pending for the same source, so a stale pass cannot clobber a
// newer cycle; false means the row moved on.
func (r *ContentRepo) Complete(ctx context.Context, row *model.TranslatableField, sourceHash string, state model.TranslationState) (bool, error) {
	next := *row
	next.ApplyState(state)

	values := map[string]any{
		"status":      next.Status,
		"last_error":  next.LastError,
		"provider":    next.Provider,
		"duration_ms": next.DurationMs,
		"updated_at":  time.Now().UTC(),
	}
	if _, ok := state.(model.Generated); ok {
		values["value"] = next.Value
	}

	res := r.db.WithContext(ctx).Model(&model.TranslatableField{}).
		Where("id = ? AND status = ? AND source_hash = ? AND manual = ?", row.ID, model.StatusPending, sourceHash, false).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	*row = next
	return true, nil
}

// SetManual stores an administrator-supplied translation.
func (r *ContentRepo) SetManual(ctx context.Context, entityID uint, field, lang, value string) (*model.TranslatableField, error) {
	db := r.db.WithContext(ctx)
	if err := r.ensureRow(db, entityID, field, lang); err != nil {
		return nil, err
	}
	err := db.Model(&model.TranslatableField{}).
		Where("entity_id = ? AND field = ? AND language = ?", entityID, field, lang).
		Updates(map[string]any{
			"value":       value,
			"status":      model.StatusGenerated,
			"manual":      true,
			"last_error":  "",
			"source_hash": "",
			"provider":    "manual",
			"duration_ms": 0,
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return nil, err
	}
	return r.Field(ctx, entityID, field, lang)
}

// ClearManual drops the manual flag. next is StatusPending (waiting on
// sourceHash) when a pass will pick the row up, StatusNotApplicable otherwise.
func (r *ContentRepo) ClearManual(ctx context.Context, entityID uint, field, lang string, next model.Status, sourceHash string) error {
	if next != model.StatusPending {
		next, sourceHash = model.StatusNotApplicable, ""
	}
	res := r.db.WithContext(ctx).Model(&model.TranslatableField{}).
		Where("entity_id = ? AND field = ? AND language = ?", entityID, field, lang).
		Updates(map[string]any{
			"manual":      false,
			"status":      next,
			"source_hash": sourceHash,
			"last_error":  "",
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PendingEntityIDs lists entities with at least one pending target row.
func (r *ContentRepo) PendingEntityIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.TranslatableField{}).
		Where("status = ? AND manual = ?", model.StatusPending, false).
		Distinct().Order("entity_id ASC").Pluck("entity_id", &ids).Error
	return ids, err
}

// StatusCounts counts target rows by status, excluding sourceLang.
func (r *ContentRepo) StatusCounts(ctx context.Context, sourceLang string) (map[model.Status]int64, error) {
	var rows []struct {
		Status model.Status
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&model.TranslatableField{}).
		Select("status, COUNT(*) AS count").
		Where("language <> ?", sourceLang).
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.Status]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
