package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/playpool/tictactoe/internal/game"
	"github.com/playpool/tictactoe/internal/models"
)

// MatchDirectory exposes live matchmaking state
type MatchDirectory interface {
	Stats() game.Stats
	Sessions() []game.SessionInfo
}

// ConnectionCounter reports connected websocket clients
type ConnectionCounter interface {
	Count() int
}

// ResultLister reads the settled-match audit log
type ResultLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.MatchResult, error)
}

// AdminStats returns queue sizes, session phases and connected clients
func AdminStats(matches MatchDirectory, conns ConnectionCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := matches.Stats()
		c.JSON(http.StatusOK, gin.H{
			"queued":            stats.Queued,
			"active_sessions":   stats.ActiveSessions,
			"phases":            stats.Phases,
			"connected_clients": conns.Count(),
		})
	}
}

// AdminMatches lists live sessions, oldest first
func AdminMatches(matches MatchDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions := matches.Sessions()
		c.JSON(http.StatusOK, gin.H{"matches": sessions, "count": len(sessions)})
	}
}

// AdminResults lists recently settled matches. results may be nil when no
// database is configured.
func AdminResults(results ResultLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		if results == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result history not configured"})
			return
		}

		limit := 50
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		list, err := results.ListRecent(c.Request.Context(), limit)
		if err != nil {
			log.Printf("[ADMIN] Failed to list results: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": list, "count": len(list)})
	}
}
