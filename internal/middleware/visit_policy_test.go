package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/folio-cms/folio/internal/config"
	"github.com/stretchr/testify/assert"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

func testVisitsConfig() config.VisitsConfig {
	return config.VisitsConfig{
		RecordStatuses:     config.RecordSuccessOnly,
		ExcludedPrefixes:   append(append([]string{}, config.DefaultAdminPrefixes...), "/static/", "/media/", "/favicon.ico", "/.well-known/"),
		ExcludedExtensions: []string{".css", ".js", ".png", ".map"},
		ExcludedPatterns:   []string{"chrome-extension", "hot-update", "__webpack"},
		BotSignatures:      []string{"googlebot", "bingbot", "bot", "crawler", "curl", "python-requests"},
		DevToolSignatures:  []string{"devtools", "vscode"},
		MinUserAgentLength: 10,
	}
}

func TestDecide(t *testing.T) {
	policy := NewVisitPolicy(testVisitsConfig())

	tests := []struct {
		name   string
		method string
		path   string
		ua     string
		status int
		want   SkipReason
	}{
		{"public page", http.MethodGet, "/projects/", chromeUA, 200, Record},
		{"home", http.MethodGet, "/", chromeUA, 200, Record},
		{"post", http.MethodPost, "/contact/", chromeUA, 200, SkipMethod},
		{"admin", http.MethodGet, "/admin/content/", chromeUA, 200, SkipExcludedPath},
		{"admin api", http.MethodGet, "/api/admin/visits", chromeUA, 200, SkipExcludedPath},
		{"dashboard", http.MethodGet, "/dashboard/", chromeUA, 200, SkipExcludedPath},
		{"static prefix", http.MethodGet, "/static/site.css", chromeUA, 200, SkipExcludedPath},
		{"asset extension", http.MethodGet, "/img/Logo.PNG", chromeUA, 200, SkipAsset},
		{"pattern", http.MethodGet, "/main.hot-update.json", chromeUA, 200, SkipPattern},
		{"missing ua", http.MethodGet, "/", "", 200, SkipUserAgent},
		{"short ua", http.MethodGet, "/", "  Mozilla  ", 200, SkipUserAgent},
		{"googlebot", http.MethodGet, "/", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", 200, SkipBot},
		{"curl", http.MethodGet, "/", "curl/8.5.0 (x86_64)", 200, SkipBot},
		{"python", http.MethodGet, "/", "Python-Requests/2.32", 200, SkipBot},
		{"devtools", http.MethodGet, "/", "Mozilla/5.0 Chrome-DevTools frontend", 200, SkipDevTool},
		{"not found", http.MethodGet, "/missing/", chromeUA, 404, SkipStatus},
		{"redirect", http.MethodGet, "/blog", chromeUA, 301, SkipStatus},
		{"server error", http.MethodGet, "/", chromeUA, 500, SkipStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Decide(tt.method, tt.path, tt.ua, tt.status))
		})
	}
}

func TestExcludedPrefixNeverRecordedRegardlessOfStatus(t *testing.T) {
	cfg := testVisitsConfig()
	cfg.RecordStatuses = config.RecordAllStatuses
	policy := NewVisitPolicy(cfg)

	for _, prefix := range cfg.ExcludedPrefixes {
		for _, status := range []int{200, 302, 404, 500} {
			assert.NotEqual(t, Record, policy.Decide(http.MethodGet, prefix+"x", chromeUA, status), "%s %d", prefix, status)
		}
	}
}

func TestRecordAllStatuses(t *testing.T) {
	cfg := testVisitsConfig()
	cfg.RecordStatuses = config.RecordAllStatuses
	policy := NewVisitPolicy(cfg)

	assert.Equal(t, Record, policy.Decide(http.MethodGet, "/missing/", chromeUA, 404))
}

func TestShouldRecord(t *testing.T) {
	policy := NewVisitPolicy(testVisitsConfig())

	req := httptest.NewRequest(http.MethodGet, "/blog/7?utm_source=x", nil)
	req.Header.Set("User-Agent", chromeUA)
	assert.True(t, policy.ShouldRecord(req, http.StatusOK))

	req.Header.Set("User-Agent", "Bingbot/2.0")
	assert.False(t, policy.ShouldRecord(req, http.StatusOK))
}
