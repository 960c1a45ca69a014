package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerAuth admits a request only if it carries "Authorization: Bearer
// <token>" matching token exactly. Unlike the login-page-oriented
// Basic/session/Bearer stack this is adapted from, the admin API has no
// login UI to defend — a single static operator token is the whole
// surface, compared in constant time to avoid a timing oracle.
//
// An empty token disables the check entirely (c.Next() unconditionally),
// which is only appropriate for local development.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		h := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(h, prefix) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		given := strings.TrimSpace(strings.TrimPrefix(h, prefix))
		if given == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
