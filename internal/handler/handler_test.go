package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/middleware"
	"github.com/folio-cms/folio/internal/repository"
	"github.com/folio-cms/folio/internal/service"
	"github.com/folio-cms/folio/internal/service/translator"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testAdminKey = "admin-key"

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Translate(_ context.Context, req translator.Request) (string, error) {
	return "[" + req.Target + "] " + req.Text, nil
}

type testServer struct {
	router    *gin.Engine
	visitRepo *repository.VisitRepo
	content   *service.ContentService
}

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

func newTestServer(t *testing.T, translationEnabled bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	cfg := &config.Config{
		Auth: config.AuthConfig{AdminKey: testAdminKey, AdminSecretKey: "secret"},
		Visits: config.VisitsConfig{
			RetentionDays:      90,
			SweepBatchSize:     10,
			ExcludedPrefixes:   []string{"/admin/"},
			BotSignatures:      []string{"bot"},
			MinUserAgentLength: 10,
			MaxUserAgentLength: 500,
		},
		Translation: config.TranslationConfig{
			Enabled:         translationEnabled,
			Provider:        "echo",
			TimeoutSeconds:  1,
			DefaultLanguage: "en",
			Languages:       []string{"en", "es"},
		},
	}

	contentRepo := repository.NewContentRepo(db)
	client := translator.NewClient(echoProvider{}, time.Second)
	orch := service.NewOrchestrator(contentRepo, client, cfg.Translation)
	content := service.NewContentService(contentRepo, orch, cfg.Translation)

	visitRepo := repository.NewVisitRepo(db)
	visits := service.NewVisitService(visitRepo, cfg.Visits)
	sweeper := service.NewRetentionSweeper(visitRepo, cfg.Visits)

	r := gin.New()
	r.Use(middleware.ErrorHandler())

	contentHandler := NewContentHandler(content)
	visitHandler := NewVisitHandler(visits, sweeper)
	publicHandler := NewPublicHandler(content, cfg.Translation)

	admin := r.Group("/admin/api", middleware.AdminMiddleware(cfg))
	admin.POST("/content", contentHandler.Create)
	admin.PUT("/content/:id", contentHandler.Update)
	admin.DELETE("/content/:id", contentHandler.Delete)
	admin.GET("/content/:id/translations", contentHandler.Translations)
	admin.PUT("/content/:id/translations/:lang/:field", contentHandler.SetTranslation)
	admin.DELETE("/content/:id/translations/:lang/:field", contentHandler.ClearTranslation)
	admin.POST("/content/:id/retranslate", contentHandler.Retranslate)
	admin.GET("/translation/status", contentHandler.Status)
	admin.GET("/visits", visitHandler.List)
	admin.GET("/visits/stats", visitHandler.Stats)
	admin.POST("/visits/sweep", visitHandler.Sweep)
	admin.POST("/visits/purge-invalid", visitHandler.PurgeInvalid)

	r.GET("/", publicHandler.Home)
	r.GET("/profile", publicHandler.Profile)
	r.GET("/projects", publicHandler.Projects)
	r.GET("/projects/:id", publicHandler.Project)
	r.GET("/blog", publicHandler.Blog)
	r.GET("/blog/:id", publicHandler.BlogPost)
	r.GET("/resume", publicHandler.Resume)

	return &testServer{router: r, visitRepo: visitRepo, content: content}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) admin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, body, map[string]string{middleware.HeaderAdminKey: testAdminKey})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
