package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/todotask/internal/actorctx"
	"github.com/geocoder89/todotask/internal/service"
	"github.com/gin-gonic/gin"
)

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(token string) (int64, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, raw, _ := strings.Cut(authHeader, " ")

		if !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			c.Header("WWW-Authenticate", "Bearer")
			abortWithError(c, http.StatusUnauthorized, "not_authenticated", "Not authenticated")
			return
		}

		userID, err := m.auth.Authenticate(strings.TrimSpace(raw))
		if err != nil {
			var domainErr *service.Error

			if errors.As(err, &domainErr) {
				abortWithError(c, domainErr.Status, string(domainErr.Kind), domainErr.Message)
				return
			}

			abortWithError(c, http.StatusUnauthorized, "not_authenticated", "Could not validate credentials")
			return
		}

		c.Set(CtxUserID, userID)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), userID))

		c.Next()
	}
}

// UserIDFromContext returns the id RequireAuth stored on the gin context.
func UserIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
