package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/repository"
	"github.com/folio-cms/folio/internal/service/translator"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))
	return db
}

// fakeProvider answers from a table keyed by "target|text"; unknown keys echo
// the text with the target prefixed.
type fakeProvider struct {
	mu    sync.Mutex
	table map[string]string
	fail  map[string]error
	delay map[string]time.Duration
	calls []translator.Request
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		table: map[string]string{},
		fail:  map[string]error{},
		delay: map[string]time.Duration{},
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Translate(ctx context.Context, req translator.Request) (string, error) {
	key := req.Target + "|" + req.Text
	p.mu.Lock()
	p.calls = append(p.calls, req)
	out, known := p.table[key]
	err := p.fail[key]
	delay := p.delay[key]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if !known {
		out = "[" + req.Target + "] " + req.Text
	}
	return out, nil
}

func (p *fakeProvider) Calls() []translator.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]translator.Request(nil), p.calls...)
}

func translationConfig(enabled bool, langs ...string) config.TranslationConfig {
	if len(langs) == 0 {
		langs = []string{"en", "es"}
	}
	return config.TranslationConfig{
		Enabled:         enabled,
		Provider:        "fake",
		TimeoutSeconds:  1,
		DefaultLanguage: "en",
		Languages:       langs,
	}
}

type contentFixture struct {
	repo     *repository.ContentRepo
	provider *fakeProvider
	orch     *Orchestrator
	svc      *ContentService
}

func newContentFixture(t *testing.T, cfg config.TranslationConfig, timeout time.Duration) *contentFixture {
	t.Helper()
	repo := repository.NewContentRepo(newTestDB(t))
	provider := newFakeProvider()
	if timeout <= 0 {
		timeout = time.Second
	}
	client := translator.NewClient(provider, timeout)
	orch := NewOrchestrator(repo, client, cfg)
	return &contentFixture{
		repo:     repo,
		provider: provider,
		orch:     orch,
		svc:      NewContentService(repo, orch, cfg),
	}
}
