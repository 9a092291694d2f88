package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/playpool/tictactoe/internal/config"
)

// CORSMiddleware returns a CORS middleware configured for the environment
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	log.Printf("[CORS] Environment: %s, FrontendURL: %s", cfg.Environment, cfg.FrontendURL)

	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"Accept", "Cache-Control", "X-Requested-With",
		},
		MaxAge: 12 * time.Hour, // Cache preflight responses
	}

	corsConfig.AllowOrigins = cfg.Origins()
	corsConfig.AllowCredentials = true
	if cfg.IsProduction() {
		log.Printf("[CORS] Production allowed origins: %v", corsConfig.AllowOrigins)
	} else {
		// any localhost port in dev
		corsConfig.AllowOriginFunc = isLocalOrigin
	}

	return cors.New(corsConfig)
}

// OriginChecker returns the websocket upgrade origin policy.
// Non-browser clients that send no Origin header are allowed.
func OriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowed := make(map[string]bool)
	for _, o := range cfg.Origins() {
		allowed[strings.TrimRight(o, "/")] = true
	}
	production := cfg.IsProduction()

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if !production && isLocalOrigin(origin) {
			return true
		}
		if allowed[strings.TrimRight(origin, "/")] {
			return true
		}
		log.Printf("[WS] Rejected websocket origin %s", origin)
		return false
	}
}

func isLocalOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:")
}
