package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/pkg/logger"
)

// Revoker stores revoked bearer tokens. *revocation.Store implements it.
type Revoker interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

// RegisterRevocationRoutes lets admins revoke a leaked token before it
// expires. ttl should be at least the longest token lifetime in use.
func RegisterRevocationRoutes(r gin.IRouter, rev Revoker, ttl time.Duration) {
	r.POST("/auth/revoke", func(c *gin.Context) {
		actor, ok := content.ActorFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !actor.HasRole(content.RoleAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		var req struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := rev.Revoke(c.Request.Context(), req.Token, ttl); err != nil {
			logger.Errorf("revoke token: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "revocation store unavailable"})
			return
		}
		logger.Audit("token_revoked", map[string]interface{}{"by": actor.UID})
		c.Status(http.StatusNoContent)
	})
}
