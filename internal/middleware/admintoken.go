package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moshaveran/moshaver-backend/internal/handlers"
	"github.com/moshaveran/moshaver-backend/internal/logger"
)

// AdminTokenMiddleware gates the admin routes behind a shared secret from
// the environment. With no token configured the routes stay open, which is
// the development default.
type AdminTokenMiddleware struct {
	log   *logger.Logger
	token string
}

func NewAdminTokenMiddleware(log *logger.Logger, token string) *AdminTokenMiddleware {
	return &AdminTokenMiddleware{
		log:   log.With("middleware", "AdminTokenMiddleware"),
		token: token,
	}
}

func (m *AdminTokenMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.token == "" {
			c.Next()
			return
		}
		provided := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(m.token)) != 1 {
			handlers.RespondError(c, http.StatusUnauthorized, "admin_token_required", fmt.Errorf("missing or invalid admin token"))
			c.Abort()
			return
		}
		c.Next()
	}
}
