package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

const (
	HeaderAdminKey       = "X-Admin-Key"
	HeaderAdminSecretKey = "X-Admin-Secret"
)

// AdminMiddleware guards the admin API. An unset key locks the API instead
// of opening it.
func AdminMiddleware(cfg *config.Config) gin.HandlerFunc {
	return requireKey(HeaderAdminKey, func() string {
		if cfg == nil {
			return ""
		}
		return cfg.Auth.AdminKey
	})
}

// AdminSecretMiddleware additionally guards destructive maintenance routes
// such as the visit sweep.
func AdminSecretMiddleware(cfg *config.Config) gin.HandlerFunc {
	return requireKey(HeaderAdminSecretKey, func() string {
		if cfg == nil {
			return ""
		}
		return cfg.Auth.AdminSecretKey
	})
}

func requireKey(header string, want func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := want()
		if key == "" {
			c.AbortWithStatusJSON(http.StatusForbidden,
				apperrors.New(apperrors.ErrConfig, header+" is not configured on the server", nil))
			return
		}
		if !equalKey(c.GetHeader(header), key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				apperrors.New(apperrors.ErrAuthFailed, "invalid "+header, nil))
			return
		}
		c.Next()
	}
}

func equalKey(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
