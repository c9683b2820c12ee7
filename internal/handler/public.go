package handler

import (
	"net/http"
	"strconv"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/middleware"
	"github.com/folio-cms/folio/internal/model"
	"github.com/folio-cms/folio/internal/pkg/apperrors"
	"github.com/folio-cms/folio/internal/service"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// PublicHandler serves the site content in the visitor's language.
type PublicHandler struct {
	content   *service.ContentService
	languages []string
	matcher   language.Matcher
}

func NewPublicHandler(content *service.ContentService, cfg config.TranslationConfig) *PublicHandler {
	// the default language goes first so it wins when nothing matches
	langs := []string{cfg.DefaultLanguage}
	if cfg.Enabled {
		langs = append(langs, cfg.TargetLanguages()...)
	}
	tags := make([]language.Tag, 0, len(langs))
	for _, l := range langs {
		tags = append(tags, language.Make(l))
	}
	return &PublicHandler{content: content, languages: langs, matcher: language.NewMatcher(tags)}
}

// Language picks ?lang when it names a served language, otherwise the best
// match for Accept-Language.
func (h *PublicHandler) Language(c *gin.Context) string {
	if raw := c.Query("lang"); raw != "" {
		for _, l := range h.languages {
			if l == raw {
				return l
			}
		}
	}
	prefs, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language"))
	if err != nil || len(prefs) == 0 {
		return h.languages[0]
	}
	_, idx, conf := h.matcher.Match(prefs...)
	if conf == language.No {
		return h.languages[0]
	}
	return h.languages[idx]
}

func (h *PublicHandler) Home(c *gin.Context) {
	lang := h.Language(c)
	ctx := c.Request.Context()

	profile, err := h.first(c, model.KindProfile, lang)
	if err != nil {
		_ = c.Error(err)
		return
	}
	projects, err := h.content.List(ctx, model.KindProject, lang)
	if err != nil {
		_ = c.Error(err)
		return
	}
	posts, err := h.content.List(ctx, model.KindBlogPost, lang)
	if err != nil {
		_ = c.Error(err)
		return
	}
	middleware.SetPageTitle(c, "Home")
	c.JSON(http.StatusOK, gin.H{
		"language": lang,
		"profile":  profile,
		"projects": head(projects, 3),
		"posts":    head(posts, 3),
	})
}

func (h *PublicHandler) Profile(c *gin.Context) {
	lang := h.Language(c)
	profile, err := h.first(c, model.KindProfile, lang)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if profile == nil {
		_ = c.Error(apperrors.NewNotFound("profile not found"))
		return
	}
	middleware.SetPageTitle(c, "Profile")
	c.JSON(http.StatusOK, profile)
}

func (h *PublicHandler) Resume(c *gin.Context) {
	lang := h.Language(c)
	ctx := c.Request.Context()

	profile, err := h.first(c, model.KindProfile, lang)
	if err != nil {
		_ = c.Error(err)
		return
	}
	experience, err := h.content.List(ctx, model.KindExperience, lang)
	if err != nil {
		_ = c.Error(err)
		return
	}
	education, err := h.content.List(ctx, model.KindEducation, lang)
	if err != nil {
		_ = c.Error(err)
		return
	}
	middleware.SetPageTitle(c, "Resume")
	c.JSON(http.StatusOK, gin.H{
		"language":   lang,
		"profile":    profile,
		"experience": experience,
		"education":  education,
	})
}

func (h *PublicHandler) Projects(c *gin.Context) {
	h.list(c, model.KindProject, "Projects")
}

func (h *PublicHandler) Project(c *gin.Context) {
	h.detail(c, model.KindProject)
}

func (h *PublicHandler) Blog(c *gin.Context) {
	h.list(c, model.KindBlogPost, "Blog")
}

func (h *PublicHandler) BlogPost(c *gin.Context) {
	h.detail(c, model.KindBlogPost)
}

func (h *PublicHandler) list(c *gin.Context, kind model.Kind, title string) {
	lang := h.Language(c)
	items, err := h.content.List(c.Request.Context(), kind, lang)
	if err != nil {
		_ = c.Error(err)
		return
	}
	middleware.SetPageTitle(c, title)
	c.JSON(http.StatusOK, gin.H{"language": lang, "items": items})
}

func (h *PublicHandler) detail(c *gin.Context, kind model.Kind) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		_ = c.Error(apperrors.NewNotFound("page not found"))
		return
	}
	item, err := h.content.Localized(c.Request.Context(), uint(id), h.Language(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	// ids of another kind are not exposed under this path
	if item.Kind != kind {
		_ = c.Error(apperrors.NewNotFound("page not found"))
		return
	}
	if title := item.Fields["title"]; title != "" {
		middleware.SetPageTitle(c, title)
	}
	c.JSON(http.StatusOK, item)
}

func (h *PublicHandler) first(c *gin.Context, kind model.Kind, lang string) (*service.LocalizedEntity, error) {
	items, err := h.content.List(c.Request.Context(), kind, lang)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func head(items []*service.LocalizedEntity, n int) []*service.LocalizedEntity {
	if len(items) > n {
		return items[:n]
	}
	return items
}
