package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

const principalKey = "principal"

// TokenVerifier turns a bearer token into an authenticated principal.
type TokenVerifier interface {
	Verify(token string) (*domain.Principal, error)
}

// RequireAuth rejects requests without a valid bearer token and stores
// the principal on the context for handlers.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		principal, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(principalKey, *principal)
		c.Next()
	}
}

// RequireAdmin runs after RequireAuth and rejects non-admin callers.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !principalFrom(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}
