package handler

import (
	"net/http"
	"strconv"

	"github.com/folio-cms/folio/internal/model"
	"github.com/folio-cms/folio/internal/pkg/apperrors"
	"github.com/folio-cms/folio/internal/service"
	"github.com/gin-gonic/gin"
)

type ContentHandler struct {
	svc *service.ContentService
}

func NewContentHandler(svc *service.ContentService) *ContentHandler {
	return &ContentHandler{svc: svc}
}

type saveRequest struct {
	Kind   model.Kind        `json:"kind"`
	Slug   string            `json:"slug"`
	Fields map[string]string `json:"fields" binding:"required"`
}

type manualRequest struct {
	Value *string `json:"value" binding:"required"`
}

func entityID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		_ = c.Error(apperrors.NewInvalidRequest("id must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

func (h *ContentHandler) Create(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), service.SaveInput{Kind: req.Kind, Slug: req.Slug, Fields: req.Fields})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *ContentHandler) Update(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), id, service.SaveInput{Kind: req.Kind, Slug: req.Slug, Fields: req.Fields})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ContentHandler) Delete(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Translations lists every target row of an entity with its status.
func (h *ContentHandler) Translations(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	statuses, err := h.svc.Statuses(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entity_id": id, "translations": statuses})
}

func (h *ContentHandler) SetTranslation(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	var req manualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	st, err := h.svc.SetManualTranslation(c.Request.Context(), id, c.Param("lang"), c.Param("field"), *req.Value)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *ContentHandler) ClearTranslation(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	res, err := h.svc.ClearManualTranslation(c.Request.Context(), id, c.Param("lang"), c.Param("field"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ContentHandler) Retranslate(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	res, err := h.svc.Retranslate(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *ContentHandler) Status(c *gin.Context) {
	ov, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ov)
}
