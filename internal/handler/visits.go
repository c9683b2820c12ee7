package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/folio-cms/folio/internal/pkg/apperrors"
	"github.com/folio-cms/folio/internal/service"
	"github.com/gin-gonic/gin"
)

type VisitHandler struct {
	visits  *service.VisitService
	sweeper *service.RetentionSweeper
}

func NewVisitHandler(visits *service.VisitService, sweeper *service.RetentionSweeper) *VisitHandler {
	return &VisitHandler{visits: visits, sweeper: sweeper}
}

func (h *VisitHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	var fromPtr *time.Time
	var toPtr *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
		fromPtr = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
		toPtr = &t
	}

	records, err := h.visits.List(c.Request.Context(), limit, fromPtr, toPtr)
	if err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrStorage, "failed to list visits", err))
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *VisitHandler) Stats(c *gin.Context) {
	top := 10
	if raw := c.Query("top"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 && parsed <= 100 {
			top = parsed
		}
	}
	stats, err := h.visits.Stats(c.Request.Context(), top)
	if err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrStorage, "failed to compute visit stats", err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Sweep runs the retention sweeper. ?days overrides the horizon and
// ?dry_run=true only counts.
func (h *VisitHandler) Sweep(c *gin.Context) {
	sweeper := h.sweeper
	if raw := c.Query("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			_ = c.Error(apperrors.NewInvalidRequest("days must be a positive integer"))
			return
		}
		sweeper = sweeper.WithHorizon(time.Duration(days) * 24 * time.Hour)
	}

	if c.Query("dry_run") == "true" {
		res, err := sweeper.Preview(c.Request.Context())
		if err != nil {
			_ = c.Error(apperrors.New(apperrors.ErrStorage, "failed to count expired visits", err))
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	res, err := sweeper.Sweep(c.Request.Context())
	if err != nil {
		var sweepErr *service.SweepError
		if errors.As(err, &sweepErr) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"code":    apperrors.ErrStorage,
				"message": sweepErr.Error(),
				"deleted": sweepErr.Deleted,
			})
			return
		}
		_ = c.Error(apperrors.New(apperrors.ErrStorage, "visit sweep failed", err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *VisitHandler) PurgeInvalid(c *gin.Context) {
	dryRun := c.Query("dry_run") == "true"
	n, err := h.visits.PurgeInvalid(c.Request.Context(), dryRun)
	if err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrStorage, "failed to purge invalid visits", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"matched": n, "dry_run": dryRun})
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format %q, want RFC3339 or unix seconds", raw)
}
