package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/folio-cms/folio/internal/model"
	"github.com/folio-cms/folio/internal/pkg/logger"
	"github.com/folio-cms/folio/internal/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/mssola/user_agent"
)

// ContextPageTitle is set by handlers that know the title of the page they render.
const ContextPageTitle = "page_title"

type VisitRecorder interface {
	Record(ctx context.Context, rec *model.VisitRecord) error
}

// SetPageTitle lets a handler name the page for the visit record.
func SetPageTitle(c *gin.Context, title string) {
	c.Set(ContextPageTitle, title)
}

// VisitMiddleware records qualifying requests after the handler has written
// its response. Storage failures are logged and never reach the client.
func VisitMiddleware(recorder VisitRecorder, policy *VisitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		reason := policy.Decide(c.Request.Method, c.Request.URL.Path, c.Request.UserAgent(), status)
		if reason != Record {
			metrics.VisitsSkipped.WithLabelValues(string(reason)).Inc()
			return
		}

		rec := &model.VisitRecord{
			Path:      c.Request.URL.Path,
			Title:     pageTitle(c),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		enrich(rec)

		// the response is already out; a client hanging up must not cancel the insert
		if err := recorder.Record(context.WithoutCancel(c.Request.Context()), rec); err != nil {
			metrics.VisitInsertErrors.Inc()
			logger.Error("failed to record visit", "module", "visits", "action", "record",
				"path", rec.Path, "error", err)
			return
		}
		metrics.VisitsRecorded.Inc()
	}
}

func pageTitle(c *gin.Context) string {
	if v, ok := c.Get(ContextPageTitle); ok {
		if title, ok := v.(string); ok && title != "" {
			return title
		}
	}
	return TitleForPath(c.Request.URL.Path)
}

var pageTitles = map[string]string{
	"/":          "Home",
	"/projects/": "Projects",
	"/resume/":   "Resume",
	"/blog/":     "Blog",
	"/contact/":  "Contact",
	"/profile/":  "Profile",
}

// TitleForPath derives a readable title from a public path.
func TitleForPath(p string) string {
	key := p
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}
	if p == "" || p == "/" {
		key = "/"
	}
	if title, ok := pageTitles[key]; ok {
		return title
	}
	switch {
	case strings.HasPrefix(key, "/projects/"):
		return "Project Detail"
	case strings.HasPrefix(key, "/blog/"):
		return "Blog Post"
	}
	return fmt.Sprintf("Page: %s", p)
}

func enrich(rec *model.VisitRecord) {
	ua := user_agent.New(rec.UserAgent)
	name, _ := ua.Browser()
	rec.Browser = name
	rec.OS = ua.OS()
	switch {
	case ua.Bot():
		rec.Device = model.DeviceBot
	case ua.Mobile():
		rec.Device = model.DeviceMobile
	default:
		rec.Device = model.DeviceDesktop
	}
}
