package middleware

import (
	"errors"

	"github.com/folio-cms/folio/internal/pkg/apperrors"
	"github.com/folio-cms/folio/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last handler error as an AppError body.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		last := c.Errors.Last()
		var appErr *apperrors.AppError
		switch {
		case errors.As(last.Err, &appErr):
		case last.IsType(gin.ErrorTypeBind):
			appErr = apperrors.New(apperrors.ErrInvalidRequest, last.Err.Error(), last.Err)
		default:
			appErr = apperrors.New(apperrors.ErrInternal, "internal error", last.Err)
		}

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(HeaderRequestID),
		}
		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "request failed", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.HTTPStatus, appErr)
	}
}
