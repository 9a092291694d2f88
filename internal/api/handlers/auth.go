package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/playpool/tictactoe/internal/admin"
	"github.com/playpool/tictactoe/internal/config"
)

// AdminAuthMiddleware validates the operator bearer JWT and sets admin_subject in context
func AdminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.JWTSecret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin API disabled"})
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		subject, err := admin.ParseToken(cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			log.Printf("[ADMIN] Rejected token from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("admin_subject", subject)
		c.Next()
	}
}
