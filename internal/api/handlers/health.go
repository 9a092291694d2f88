package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"status":  "ok",
		"service": "tictactoe-coordinator",
		"version": version,
		"uptime":  time.Since(startTime).String(),
	})
}
