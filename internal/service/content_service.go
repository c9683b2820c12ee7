package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/model"
	"github.com/folio-cms/folio/internal/pkg/apperrors"
	"github.com/folio-cms/folio/internal/pkg/logger"
	"github.com/folio-cms/folio/internal/repository"
)

// SaveInput is an administrator edit. ID zero creates a new entity; only the
// fields present in Fields are written.
type SaveInput struct {
	ID     uint              `json:"-"`
	Kind   model.Kind        `json:"kind"`
	Slug   string            `json:"slug"`
	Fields map[string]string `json:"fields"`
}

type SaveResult struct {
	Entity  *model.Entity `json:"entity"`
	Changed []string      `json:"changed"`
	// Report is set when the pass ran inline.
	Report *PassReport `json:"report,omitempty"`
	Queued bool        `json:"queued,omitempty"`
}

// LocalizedEntity is an entity rendered in one language.
type LocalizedEntity struct {
	ID       uint              `json:"id"`
	Kind     model.Kind        `json:"kind"`
	Slug     string            `json:"slug,omitempty"`
	Language string            `json:"language"`
	Fields   map[string]string `json:"fields"`
}

type TranslationOverview struct {
	Enabled         bool                   `json:"enabled"`
	Provider        string                 `json:"provider,omitempty"`
	DefaultLanguage string                 `json:"default_language"`
	Targets         []string               `json:"targets"`
	Disabled        []string               `json:"disabled_languages"`
	Async           bool                   `json:"async"`
	QueueDepth      int                    `json:"queue_depth"`
	Counts          map[model.Status]int64 `json:"counts"`
}

type ContentService struct {
	repo  ContentRepo
	orch  *Orchestrator
	queue *Queue
	cfg   config.TranslationConfig
}

func NewContentService(repo ContentRepo, orch *Orchestrator, cfg config.TranslationConfig) *ContentService {
	return &ContentService{repo: repo, orch: orch, cfg: cfg}
}

// UseQueue switches saves to background passes.
func (s *ContentService) UseQueue(q *Queue) {
	s.queue = q
}

// Save writes the source-language values and starts a translation cycle for
// every changed translatable field. Translation outcomes never fail the save.
func (s *ContentService) Save(ctx context.Context, in SaveInput) (*SaveResult, error) {
	if err := validateFields(in.Kind, in.Fields); err != nil {
		return nil, err
	}

	entity, err := s.loadOrCreate(ctx, in)
	if err != nil {
		return nil, err
	}

	res := &SaveResult{Entity: entity, Changed: []string{}}
	for _, spec := range model.Registry[entity.Kind] {
		value, ok := in.Fields[spec.Name]
		if !ok {
			continue
		}
		changed, err := s.repo.UpsertSource(ctx, entity.ID, spec.Name, s.cfg.DefaultLanguage, value)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrStorage, "failed to save content", err)
		}
		if !changed {
			continue
		}
		res.Changed = append(res.Changed, spec.Name)
		if err := s.startCycle(ctx, entity.ID, spec, value); err != nil {
			return nil, apperrors.New(apperrors.ErrStorage, "failed to update translation status", err)
		}
	}

	logger.Info("content saved", "module", "content", "action", "save", "entity_id", entity.ID,
		"kind", entity.Kind, "changed", len(res.Changed))

	if len(res.Changed) > 0 {
		s.dispatch(ctx, entity.ID, res)
	}
	return res, nil
}

func (s *ContentService) loadOrCreate(ctx context.Context, in SaveInput) (*model.Entity, error) {
	if in.ID == 0 {
		e := &model.Entity{Kind: in.Kind, Slug: in.Slug}
		if err := s.repo.CreateEntity(ctx, e); err != nil {
			return nil, apperrors.New(apperrors.ErrStorage, "failed to create content", err)
		}
		return e, nil
	}

	e, err := s.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if in.Kind != "" && in.Kind != e.Kind {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("content %d is a %s, not a %s", e.ID, e.Kind, in.Kind))
	}
	if in.Slug != "" && in.Slug != e.Slug {
		if err := s.repo.TouchEntity(ctx, e.ID, in.Slug); err != nil {
			return nil, apperrors.New(apperrors.ErrStorage, "failed to update content", err)
		}
		e.Slug = in.Slug
	}
	return e, nil
}

// startCycle moves the targets of one changed field to their next state.
// With automatic translation off nothing moves.
func (s *ContentService) startCycle(ctx context.Context, entityID uint, spec model.FieldSpec, value string) error {
	if !s.cfg.Enabled {
		return nil
	}
	hash := SourceHash(value)
	for _, lang := range s.cfg.Languages {
		if lang == s.cfg.DefaultLanguage {
			continue
		}
		var err error
		if spec.Translatable && !slices.Contains(s.cfg.DisabledLanguages, lang) {
			_, err = s.repo.MarkPending(ctx, entityID, spec.Name, lang, hash)
		} else {
			_, err = s.repo.MarkNotApplicable(ctx, entityID, spec.Name, lang)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ContentService) dispatch(ctx context.Context, entityID uint, res *SaveResult) {
	if s.orch == nil || !s.orch.Enabled() {
		return
	}
	if s.queue != nil {
		res.Queued = s.queue.Enqueue(entityID)
		return
	}
	// the pass outlives a client that disconnects mid-save
	report, err := s.orch.Run(context.WithoutCancel(ctx), entityID)
	if err != nil {
		logger.Error("translation pass failed", "module", "content", "action", "translate", "entity_id", entityID, "error", err)
	}
	res.Report = report
}

func validateFields(kind model.Kind, fields map[string]string) error {
	if kind != "" && !kind.Valid() {
		return apperrors.NewInvalidRequest(fmt.Sprintf("unknown content kind %q", kind))
	}
	if kind == "" {
		return nil
	}
	for name := range fields {
		if _, ok := kind.Field(name); !ok {
			return apperrors.NewInvalidRequest(fmt.Sprintf("%s has no field %q", kind, name))
		}
	}
	return nil
}

// Create requires a kind; Save with ID zero goes through here from handlers.
func (s *ContentService) Create(ctx context.Context, in SaveInput) (*SaveResult, error) {
	if in.Kind == "" {
		return nil, apperrors.NewInvalidRequest("kind is required")
	}
	in.ID = 0
	return s.Save(ctx, in)
}

// Update edits an existing entity.
func (s *ContentService) Update(ctx context.Context, id uint, in SaveInput) (*SaveResult, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.ID = id
	if in.Kind == "" {
		in.Kind = e.Kind
	}
	return s.Save(ctx, in)
}

func (s *ContentService) Get(ctx context.Context, id uint) (*model.Entity, error) {
	e, err := s.repo.GetEntity(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound(fmt.Sprintf("content %d not found", id))
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrStorage, "failed to load content", err)
	}
	return e, nil
}

func (s *ContentService) Delete(ctx context.Context, id uint) error {
	err := s.repo.DeleteEntity(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(fmt.Sprintf("content %d not found", id))
	}
	if err != nil {
		return apperrors.New(apperrors.ErrStorage, "failed to delete content", err)
	}
	logger.Info("content deleted", "module", "content", "action", "delete", "entity_id", id)
	return nil
}

func (s *ContentService) checkTarget(ctx context.Context, entityID uint, lang, field string) (*model.Entity, model.FieldSpec, error) {
	e, err := s.Get(ctx, entityID)
	if err != nil {
		return nil, model.FieldSpec{}, err
	}
	spec, ok := e.Kind.Field(field)
	if !ok || !spec.Translatable {
		return nil, model.FieldSpec{}, apperrors.NewInvalidRequest(fmt.Sprintf("%s.%s is not translatable", e.Kind, field))
	}
	if lang == s.cfg.DefaultLanguage || !slices.Contains(s.cfg.Languages, lang) {
		return nil, model.FieldSpec{}, apperrors.NewInvalidRequest(fmt.Sprintf("%q is not a target language", lang))
	}
	return e, spec, nil
}

// SetManualTranslation stores an administrator-supplied value. The row is
// marked manual and no later pass overwrites it.
func (s *ContentService) SetManualTranslation(ctx context.Context, entityID uint, lang, field, value string) (*model.FieldStatus, error) {
	if _, _, err := s.checkTarget(ctx, entityID, lang, field); err != nil {
		return nil, err
	}
	row, err := s.repo.SetManual(ctx, entityID, field, lang, value)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrStorage, "failed to save translation", err)
	}
	logger.Info("manual translation saved", "module", "content", "action", "set_manual",
		"entity_id", entityID, "field", field, "language", lang)
	st := row.ToStatus()
	return &st, nil
}

// ClearManualTranslation hands the row back to the orchestrator. With
// automatic translation off, or the language disabled, nothing would pick a
// pending row up, so it becomes not_applicable and shows the source text.
func (s *ContentService) ClearManualTranslation(ctx context.Context, entityID uint, lang, field string) (*SaveResult, error) {
	e, _, err := s.checkTarget(ctx, entityID, lang, field)
	if err != nil {
		return nil, err
	}
	source := ""
	if row, err := s.repo.Field(ctx, entityID, field, s.cfg.DefaultLanguage); err == nil {
		source = row.Value
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.New(apperrors.ErrStorage, "failed to load content", err)
	}

	next := model.StatusPending
	if s.orch == nil || !s.orch.Enabled() || slices.Contains(s.cfg.DisabledLanguages, lang) {
		next = model.StatusNotApplicable
	}
	err = s.repo.ClearManual(ctx, entityID, field, lang, next, SourceHash(source))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound(fmt.Sprintf("no %s translation of %s", lang, field))
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrStorage, "failed to clear translation", err)
	}

	res := &SaveResult{Entity: e, Changed: []string{field}}
	if next == model.StatusPending {
		s.dispatch(ctx, entityID, res)
	}
	return res, nil
}

// Retranslate starts a fresh cycle for every non-manual target, which is how
// failed pairs are retried.
func (s *ContentService) Retranslate(ctx context.Context, entityID uint) (*SaveResult, error) {
	if !s.cfg.Enabled {
		return nil, apperrors.NewInvalidRequest("automatic translation is disabled")
	}
	e, err := s.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Fields(ctx, entityID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrStorage, "failed to load content", err)
	}

	res := &SaveResult{Entity: e, Changed: []string{}}
	for _, row := range rows {
		if row.Language != s.cfg.DefaultLanguage {
			continue
		}
		spec, ok := e.Kind.Field(row.Field)
		if !ok {
			continue
		}
		if err := s.startCycle(ctx, entityID, spec, row.Value); err != nil {
			return nil, apperrors.New(apperrors.ErrStorage, "failed to update translation status", err)
		}
		res.Changed = append(res.Changed, row.Field)
	}
	if len(res.Changed) > 0 {
		s.dispatch(ctx, entityID, res)
	}
	return res, nil
}

// Localized renders an entity in lang. Targets without a usable value fall
// back to the source text.
func (s *ContentService) Localized(ctx context.Context, entityID uint, lang string) (*LocalizedEntity, error) {
	e, err := s.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Fields(ctx, entityID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrStorage, "failed to load content", err)
	}
	return s.localize(e, rows, lang), nil
}

func (s *ContentService) localize(e *model.Entity, rows []*model.TranslatableField, lang string) *LocalizedEntity {
	source := make(map[string]string)
	target := make(map[string]*model.TranslatableField)
	for _, row := range rows {
		switch row.Language {
		case s.cfg.DefaultLanguage:
			source[row.Field] = row.Value
		case lang:
			target[row.Field] = row
		}
	}

	out := &LocalizedEntity{ID: e.ID, Kind: e.Kind, Slug: e.Slug, Language: lang, Fields: map[string]string{}}
	for _, spec := range model.Registry[e.Kind] {
		value, ok := source[spec.Name]
		if !ok {
			continue
		}
		if row := target[spec.Name]; spec.Translatable && row != nil && row.Value != "" {
			// failed keeps the last good translation on display
			if row.Status == model.StatusGenerated || row.Status == model.StatusFailed {
				value = row.Value
			}
		}
		out.Fields[spec.Name] = value
	}
	return out
}

// List renders every entity of a kind in lang, newest first.
func (s *ContentService) List(ctx context.Context, kind model.Kind, lang string) ([]*LocalizedEntity, error) {
	entities, err := s.repo.ListEntities(ctx, kind)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrStorage, "failed to list content", err)
	}
	out := make([]*LocalizedEntity, 0, len(entities))
	for _, e := range entities {
		rows, err := s.repo.Fields(ctx, e.ID)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrStorage, "failed to load content", err)
		}
		out = append(out, s.localize(e, rows, lang))
	}
	return out, nil
}

// Statuses lists the target rows of an entity.
func (s *ContentService) Statuses(ctx context.Context, entityID uint) ([]model.FieldStatus, error) {
	if _, err := s.Get(ctx, entityID); err != nil {
		return nil, err
	}
	rows, err := s.repo.Fields(ctx, entityID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrStorage, "failed to load translations", err)
	}
	out := make([]model.FieldStatus, 0, len(rows))
	for _, row := range rows {
		if row.Language == s.cfg.DefaultLanguage {
			continue
		}
		out = append(out, row.ToStatus())
	}
	return out, nil
}

// RunPending runs a pass for every entity with pending rows, inline.
func (s *ContentService) RunPending(ctx context.Context) ([]*PassReport, error) {
	ids, err := s.repo.PendingEntityIDs(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]*PassReport, 0, len(ids))
	for _, id := range ids {
		report, err := s.orch.Run(ctx, id)
		if err != nil {
			return reports, fmt.Errorf("entity %d: %w", id, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// RunEntity runs one pass inline.
func (s *ContentService) RunEntity(ctx context.Context, id uint) (*PassReport, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.orch.Run(ctx, id)
}

func (s *ContentService) Overview(ctx context.Context) (*TranslationOverview, error) {
	counts, err := s.repo.StatusCounts(ctx, s.cfg.DefaultLanguage)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrStorage, "failed to count translations", err)
	}
	ov := &TranslationOverview{
		Enabled:         s.cfg.Enabled,
		DefaultLanguage: s.cfg.DefaultLanguage,
		Targets:         s.cfg.TargetLanguages(),
		Disabled:        s.cfg.DisabledLanguages,
		Async:           s.queue != nil,
		Counts:          counts,
	}
	if ov.Disabled == nil {
		ov.Disabled = []string{}
	}
	if s.orch != nil && s.orch.client != nil {
		ov.Provider = s.orch.client.ProviderName()
	}
	if s.queue != nil {
		ov.QueueDepth = s.queue.Depth()
	}
	return ov, nil
}
