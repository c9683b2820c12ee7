package service

import (
	"context"
	"errors"
	"testing"

	"github.com/folio-cms/folio/internal/model"
	"github.com/folio-cms/folio/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appErrType(t *testing.T, err error) apperrors.ErrorType {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Type
}

func TestSaveValidation(t *testing.T) {
	f := newContentFixture(t, translationConfig(true), 0)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, SaveInput{Fields: map[string]string{"title": "x"}})
	assert.Equal(t, apperrors.ErrInvalidRequest, appErrType(t, err))

	_, err = f.svc.Create(ctx, SaveInput{Kind: "skill", Fields: map[string]string{"name": "Go"}})
	assert.Equal(t, apperrors.ErrInvalidRequest, appErrType(t, err))

	_, err = f.svc.Create(ctx, SaveInput{Kind: model.KindProject, Fields: map[string]string{"body": "x"}})
	assert.Equal(t, apperrors.ErrInvalidRequest, appErrType(t, err))

	_, err = f.svc.Update(ctx, 999, SaveInput{Fields: map[string]string{"title": "x"}})
	assert.Equal(t, apperrors.ErrNotFound, appErrType(t, err))

	res, err := f.svc.Create(ctx, SaveInput{Kind: model.KindProject, Fields: map[string]string{"title": "x"}})
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, res.Entity.ID, SaveInput{Kind: model.KindBlogPost, Fields: map[string]string{"title": "y"}})
	assert.Equal(t, apperrors.ErrInvalidRequest, appErrType(t, err))
}

func TestLocalizedFallsBackToSource(t *testing.T) {
	f := newContentFixture(t, translationConfig(true, "en", "es", "fr"), 0)
	ctx := context.Background()
	f.provider.table["es|Hello"] = "Hola"
	f.provider.fail["fr|Hello"] = errors.New("connection refused")

	res, err := f.svc.Create(ctx, SaveInput{
		Kind:   model.KindProject,
		Slug:   "hello",
		Fields: map[string]string{"title": "Hello", "github_url": "https://github.com/folio"},
	})
	require.NoError(t, err)
	id := res.Entity.ID

	es, err := f.svc.Localized(ctx, id, "es")
	require.NoError(t, err)
	assert.Equal(t, "Hola", es.Fields["title"])
	assert.Equal(t, "https://github.com/folio", es.Fields["github_url"])
	assert.Equal(t, "hello", es.Slug)

	fr, err := f.svc.Localized(ctx, id, "fr")
	require.NoError(t, err)
	assert.Equal(t, "Hello", fr.Fields["title"], "failed with no prior value shows the source")

	en, err := f.svc.Localized(ctx, id, "en")
	require.NoError(t, err)
	assert.Equal(t, "Hello", en.Fields["title"])

	list, err := f.svc.List(ctx, model.KindProject, "es")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Hola", list[0].Fields["title"])
}

func TestFailedRetranslationKeepsPreviousValueOnDisplay(t *testing.T) {
	f := newContentFixture(t, translationConfig(true), 0)
	ctx := context.Background()
	f.provider.table["es|Hello"] = "Hola"

	res, err := f.svc.Create(ctx, SaveInput{Kind: model.KindProject, Fields: map[string]string{"title": "Hello"}})
	require.NoError(t, err)

	f.provider.fail["es|Hello"] = errors.New("connection refused")
	_, err = f.svc.Retranslate(ctx, res.Entity.ID)
	require.NoError(t, err)

	row, err := f.repo.Field(ctx, res.Entity.ID, "title", "es")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, row.Status)
	assert.Equal(t, "Hola", row.Value)

	es, err := f.svc.Localized(ctx, res.Entity.ID, "es")
	require.NoError(t, err)
	assert.Equal(t, "Hola", es.Fields["title"])
}

func TestStatusesAndOverview(t *testing.T) {
	f := newContentFixture(t, translationConfig(true), 0)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, SaveInput{Kind: model.KindProfile, Fields: map[string]string{"name": "Ada", "email": "ada@example.com"}})
	require.NoError(t, err)

	statuses, err := f.svc.Statuses(ctx, res.Entity.ID)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, st := range statuses {
		assert.Equal(t, "es", st.Language)
	}

	ov, err := f.svc.Overview(ctx)
	require.NoError(t, err)
	assert.True(t, ov.Enabled)
	assert.Equal(t, "fake", ov.Provider)
	assert.Equal(t, []string{"es"}, ov.Targets)
	assert.Equal(t, int64(1), ov.Counts[model.StatusGenerated])
	assert.Equal(t, int64(1), ov.Counts[model.StatusNotApplicable])
}

func TestManualTranslationValidation(t *testing.T) {
	f := newContentFixture(t, translationConfig(true), 0)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, SaveInput{Kind: model.KindProfile, Fields: map[string]string{"name": "Ada"}})
	require.NoError(t, err)
	id := res.Entity.ID

	_, err = f.svc.SetManualTranslation(ctx, id, "es", "email", "x")
	assert.Equal(t, apperrors.ErrInvalidRequest, appErrType(t, err))

	_, err = f.svc.SetManualTranslation(ctx, id, "en", "name", "x")
	assert.Equal(t, apperrors.ErrInvalidRequest, appErrType(t, err))

	_, err = f.svc.SetManualTranslation(ctx, id, "de", "name", "x")
	assert.Equal(t, apperrors.ErrInvalidRequest, appErrType(t, err))

	st, err := f.svc.SetManualTranslation(ctx, id, "es", "name", "Ada L.")
	require.NoError(t, err)
	assert.True(t, st.Manual)
	assert.Equal(t, model.StatusGenerated, st.Status)
}

func TestDeleteCascadesAndRunPending(t *testing.T) {
	f := newContentFixture(t, translationConfig(true), 0)
	ctx := context.Background()
	f.orch.cfg.Enabled = false

	a, err := f.svc.Create(ctx, SaveInput{Kind: model.KindBlogPost, Fields: map[string]string{"title": "A"}})
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, SaveInput{Kind: model.KindBlogPost, Fields: map[string]string{"title": "B"}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, a.Entity.ID))
	assert.Equal(t, apperrors.ErrNotFound, appErrType(t, f.svc.Delete(ctx, a.Entity.ID)))

	f.orch.cfg.Enabled = true
	reports, err := f.svc.RunPending(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, b.Entity.ID, reports[0].EntityID)
	assert.Equal(t, 1, reports[0].Generated)
}
