package middleware

import (
	"net/http"
	"path"
	"strings"

	"github.com/folio-cms/folio/internal/config"
)

// SkipReason says why a request was not recorded. The empty reason means record.
type SkipReason string

const (
	Record           SkipReason = ""
	SkipMethod       SkipReason = "method"
	SkipExcludedPath SkipReason = "excluded_path"
	SkipAsset        SkipReason = "asset"
	SkipPattern      SkipReason = "pattern"
	SkipUserAgent    SkipReason = "user_agent"
	SkipBot          SkipReason = "bot"
	SkipDevTool      SkipReason = "dev_tool"
	SkipStatus       SkipReason = "status"
)

// VisitPolicy decides which requests become visit records.
type VisitPolicy struct {
	prefixes    []string
	extensions  []string
	patterns    []string
	bots        []string
	devTools    []string
	minUALength int
	allStatuses bool
}

func NewVisitPolicy(cfg config.VisitsConfig) *VisitPolicy {
	return &VisitPolicy{
		prefixes:    cfg.ExcludedPrefixes,
		extensions:  lowered(cfg.ExcludedExtensions),
		patterns:    lowered(cfg.ExcludedPatterns),
		bots:        lowered(cfg.BotSignatures),
		devTools:    lowered(cfg.DevToolSignatures),
		minUALength: cfg.MinUserAgentLength,
		allStatuses: cfg.RecordStatuses == config.RecordAllStatuses,
	}
}

// ShouldRecord reports whether the request, answered with status, is a visit.
func (p *VisitPolicy) ShouldRecord(r *http.Request, status int) bool {
	return p.Decide(r.Method, r.URL.Path, r.UserAgent(), status) == Record
}

// Decide applies the rules in order and returns the first that matched.
func (p *VisitPolicy) Decide(method, urlPath, userAgent string, status int) SkipReason {
	if method != http.MethodGet {
		return SkipMethod
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(urlPath, prefix) {
			return SkipExcludedPath
		}
	}

	lowerPath := strings.ToLower(urlPath)
	if ext := path.Ext(lowerPath); ext != "" {
		for _, e := range p.extensions {
			if ext == e {
				return SkipAsset
			}
		}
	}
	for _, pattern := range p.patterns {
		if strings.Contains(lowerPath, pattern) {
			return SkipPattern
		}
	}

	ua := strings.TrimSpace(userAgent)
	if len(ua) < p.minUALength {
		return SkipUserAgent
	}
	lowerUA := strings.ToLower(ua)
	for _, sig := range p.bots {
		if strings.Contains(lowerUA, sig) {
			return SkipBot
		}
	}
	for _, sig := range p.devTools {
		if strings.Contains(lowerUA, sig) {
			return SkipDevTool
		}
	}

	if !p.allStatuses && (status < 200 || status > 299) {
		return SkipStatus
	}
	return Record
}

func lowered(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
