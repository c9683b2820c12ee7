package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/model"
	"github.com/folio-cms/folio/internal/pkg/logger"
	"github.com/folio-cms/folio/internal/pkg/metrics"
	"github.com/folio-cms/folio/internal/service/translator"
)

// ContentRepo is the storage used by ContentService and Orchestrator.
type ContentRepo interface {
	CreateEntity(ctx context.Context, e *model.Entity) error
	TouchEntity(ctx context.Context, id uint, slug string) error
	GetEntity(ctx context.Context, id uint) (*model.Entity, error)
	ListEntities(ctx context.Context, kind model.Kind) ([]*model.Entity, error)
	DeleteEntity(ctx context.Context, id uint) error
	Fields(ctx context.Context, entityID uint) ([]*model.TranslatableField, error)
	Field(ctx context.Context, entityID uint, field, lang string) (*model.TranslatableField, error)
	UpsertSource(ctx context.Context, entityID uint, field, lang, value string) (bool, error)
	MarkPending(ctx context.Context, entityID uint, field, lang, sourceHash string) (bool, error)
	MarkNotApplicable(ctx context.Context, entityID uint, field, lang string) (bool, error)
	Pending(ctx context.Context, entityID uint) ([]*model.TranslatableField, error)
	Complete(ctx context.Context, row *model.TranslatableField, sourceHash string, state model.TranslationState) (bool, error)
	SetManual(ctx context.Context, entityID uint, field, lang, value string) (*model.TranslatableField, error)
	ClearManual(ctx context.Context, entityID uint, field, lang string, next model.Status, sourceHash string) error
	PendingEntityIDs(ctx context.Context) ([]uint, error)
	StatusCounts(ctx context.Context, sourceLang string) (map[model.Status]int64, error)
}

// Outcome is the result of one (field, language) pair in a pass.
type Outcome struct {
	Field    string       `json:"field"`
	Language string       `json:"language"`
	Status   model.Status `json:"status"`
	Error    string       `json:"error,omitempty"`
	Cached   bool         `json:"cached,omitempty"`
	// Superseded is set when a newer edit restarted the cycle mid-pass.
	Superseded bool `json:"superseded,omitempty"`
}

// PassReport summarises one orchestration pass over an entity.
type PassReport struct {
	EntityID   uint      `json:"entity_id"`
	Outcomes   []Outcome `json:"outcomes"`
	Generated  int       `json:"generated"`
	Failed     int       `json:"failed"`
	Superseded int       `json:"superseded"`
}

func (r *PassReport) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch {
	case o.Superseded:
		r.Superseded++
	case o.Status == model.StatusGenerated:
		r.Generated++
	case o.Status == model.StatusFailed:
		r.Failed++
	}
}

// Orchestrator drives pending target rows to generated or failed.
type Orchestrator struct {
	repo   ContentRepo
	client *translator.Client
	cfg    config.TranslationConfig
}

func NewOrchestrator(repo ContentRepo, client *translator.Client, cfg config.TranslationConfig) *Orchestrator {
	return &Orchestrator{repo: repo, client: client, cfg: cfg}
}

func (o *Orchestrator) Enabled() bool {
	return o.cfg.Enabled && o.client != nil
}

// Run performs one pass over the entity. Languages are visited in configured
// order and fields in registry order; a failing pair never stops the pass.
// Only storage errors reading the entity are returned.
func (o *Orchestrator) Run(ctx context.Context, entityID uint) (*PassReport, error) {
	report := &PassReport{EntityID: entityID, Outcomes: []Outcome{}}
	if !o.Enabled() {
		return report, nil
	}

	entity, err := o.repo.GetEntity(ctx, entityID)
	if err != nil {
		return report, err
	}
	pending, err := o.repo.Pending(ctx, entityID)
	if err != nil {
		return report, err
	}
	if len(pending) == 0 {
		return report, nil
	}
	rows, err := o.repo.Fields(ctx, entityID)
	if err != nil {
		return report, err
	}

	source := make(map[string]*model.TranslatableField)
	for _, row := range rows {
		if row.Language == o.cfg.DefaultLanguage {
			source[row.Field] = row
		}
	}
	byKey := make(map[[2]string]*model.TranslatableField, len(pending))
	for _, row := range pending {
		byKey[[2]string{row.Language, row.Field}] = row
	}

	started := time.Now()
	targets := o.cfg.TargetLanguages()
	for _, lang := range targets {
		for _, spec := range model.Registry[entity.Kind] {
			key := [2]string{lang, spec.Name}
			row, ok := byKey[key]
			if !ok {
				continue
			}
			delete(byKey, key)

			if err := ctx.Err(); err != nil {
				// rows stay pending for the next pass
				return report, err
			}

			switch {
			case !spec.Translatable:
				report.add(o.complete(ctx, entityID, row, model.NotApplicable{}))
			default:
				report.add(o.translate(ctx, entityID, row, spec, source[spec.Name]))
			}
		}
	}

	// leftovers: languages disabled since marking, or fields no longer registered
	for _, row := range byKey {
		report.add(o.complete(ctx, entityID, row, model.NotApplicable{}))
	}

	logger.Info("translation pass finished", "module", "orchestrator", "action", "run",
		"entity_id", entityID, "generated", report.Generated, "failed", report.Failed,
		"superseded", report.Superseded, "duration_ms", time.Since(started).Milliseconds())
	return report, nil
}

func (o *Orchestrator) translate(ctx context.Context, entityID uint, row *model.TranslatableField, spec model.FieldSpec, src *model.TranslatableField) Outcome {
	text := ""
	if src != nil {
		text = src.Value
	}
	// the source moved on after this row was marked; the newer cycle owns it
	if row.SourceHash != SourceHash(text) {
		return Outcome{Field: row.Field, Language: row.Language, Status: model.StatusPending, Superseded: true}
	}
	if text == "" {
		row.Provider = ""
		row.DurationMs = 0
		return o.complete(ctx, entityID, row, model.Generated{Value: ""})
	}

	res, err := o.client.Translate(ctx, translator.Request{
		Text:   text,
		Source: o.cfg.DefaultLanguage,
		Target: row.Language,
		Format: spec.Format,
	})
	row.Provider = res.Provider
	row.DurationMs = res.Duration.Milliseconds()

	var state model.TranslationState = model.Generated{Value: res.Text}
	if err != nil {
		logger.Warn("translation failed", "module", "orchestrator", "action", "translate",
			"entity_id", entityID, "field", row.Field, "language", row.Language, "provider", res.Provider, "error", err)
		state = model.Failed{Err: translator.Describe(err)}
	}
	out := o.complete(ctx, entityID, row, state)
	out.Cached = res.Cached
	return out
}

func (o *Orchestrator) complete(ctx context.Context, entityID uint, row *model.TranslatableField, state model.TranslationState) Outcome {
	hash := row.SourceHash
	out := Outcome{Field: row.Field, Language: row.Language, Status: state.Status()}
	if f, ok := state.(model.Failed); ok {
		out.Error = model.TruncateError(f.Err)
	}

	// a cancelled parent must not block recording a finished attempt
	ok, err := o.repo.Complete(context.WithoutCancel(ctx), row, hash, state)
	switch {
	case err != nil:
		logger.Error("failed to store translation outcome", "module", "orchestrator", "action", "complete",
			"entity_id", entityID, "field", row.Field, "language", row.Language, "error", err)
		out.Status = model.StatusPending
		out.Error = "storage error: " + err.Error()
		return out
	case !ok:
		out.Status = model.StatusPending
		out.Superseded = true
		return out
	}
	if state.Status() != model.StatusNotApplicable {
		metrics.Translations.WithLabelValues(row.Language, string(state.Status())).Inc()
	}
	return out
}

// SourceHash fingerprints a source value; pending rows remember the hash of
// the text they are waiting for.
func SourceHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
