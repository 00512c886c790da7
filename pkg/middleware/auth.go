package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/pkg/logger"
)

// Gin context keys set by AuthMiddleware.
const (
	ClaimsKey = "claims"
	ActorKey  = "actor"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// RevocationChecker reports tokens that were revoked before they expired.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type authOptions struct {
	revocations RevocationChecker
}

// AuthOption configures AuthMiddleware.
type AuthOption func(*authOptions)

// WithRevocationCheck rejects tokens rc reports as revoked.
func WithRevocationCheck(rc RevocationChecker) AuthOption {
	return func(o *authOptions) { o.revocations = rc }
}

// AuthMiddleware verifies Bearer tokens with ver and turns the claims into
// the content.Actor every write is attributed to. The actor is stored on the
// gin context and on the request context.
func AuthMiddleware(ver Verifier, opts ...AuthOption) gin.HandlerFunc {
	var o authOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		// Expect 'Bearer <token>'
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		if o.revocations != nil {
			revoked, err := o.revocations.IsRevoked(c.Request.Context(), token)
			if err != nil {
				logger.Errorf("token revocation check: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "token revocation check failed"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}
		actor, ok := content.ActorFromClaims(claims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(ActorKey, actor)
		c.Request = c.Request.WithContext(content.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// rateKey prefers the authenticated actor so users behind one NAT do not
// share a bucket. Anonymous requests fall back to the client IP.
func rateKey(c *gin.Context) string {
	if a, ok := content.ActorFromContext(c.Request.Context()); ok {
		return "uid:" + a.UID
	}
	if v, ok := c.Get(ClaimsKey); ok {
		if cm, ok := v.(map[string]interface{}); ok {
			if sub, ok := cm["sub"].(string); ok && sub != "" {
				return "uid:" + sub
			}
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
