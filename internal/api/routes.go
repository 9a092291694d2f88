package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/playpool/tictactoe/internal/api/handlers"
	"github.com/playpool/tictactoe/internal/config"
	"github.com/playpool/tictactoe/internal/middleware"
	"github.com/playpool/tictactoe/internal/ws"
)

// Deps are the collaborators the HTTP surface needs. Results may be nil.
type Deps struct {
	Matches handlers.MatchDirectory
	Hub     *ws.Hub
	Socket  *ws.Handler
	Results handlers.ResultLister
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, deps Deps, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if !cfg.IsProduction() {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	router.GET("/health", handlers.HealthCheck)
	router.GET("/ws", deps.Socket.HandleWebSocket)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/ws", deps.Socket.HandleWebSocket)

		// Operator endpoints
		adminGroup := v1.Group("/admin")
		adminGroup.Use(handlers.AdminAuthMiddleware(cfg))
		{
			adminGroup.GET("/stats", handlers.AdminStats(deps.Matches, deps.Hub))
			adminGroup.GET("/matches", handlers.AdminMatches(deps.Matches))
			adminGroup.GET("/results", handlers.AdminResults(deps.Results))
		}
	}
}
