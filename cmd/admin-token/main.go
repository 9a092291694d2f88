package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/playpool/tictactoe/internal/admin"
	"github.com/playpool/tictactoe/internal/config"
)

// Prints an operator bearer token for the /api/v1/admin endpoints.
func main() {
	subject := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to ADMIN_TOKEN_TTL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *ttl <= 0 {
		*ttl = cfg.AdminTokenTTL
	}

	token, err := admin.IssueToken(cfg.JWTSecret, *subject, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	log.Printf("[ADMIN] Issued token for %s valid for %s", *subject, *ttl)
	fmt.Println(token)
}
