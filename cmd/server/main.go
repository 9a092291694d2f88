package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playpool/tictactoe/internal/api"
	"github.com/playpool/tictactoe/internal/config"
	"github.com/playpool/tictactoe/internal/database"
	"github.com/playpool/tictactoe/internal/game"
	"github.com/playpool/tictactoe/internal/history"
	"github.com/playpool/tictactoe/internal/ledger"
	"github.com/playpool/tictactoe/internal/middleware"
	"github.com/playpool/tictactoe/internal/migrations"
	"github.com/playpool/tictactoe/internal/redis"
	"github.com/playpool/tictactoe/internal/ws"
)

func main() {
	// Initialize configuration (.env is loaded by config.Load)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := game.Options{ReportTimeout: cfg.ResultReportTimeout}
	deps := api.Deps{}
	stopFeed := func() {}

	// Optional audit log
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if cfg.MigrateOnStart {
			log.Println("Running DB migrations on startup...")
			if err := migrations.RunMigrations(cfg.DatabaseURL, cfg.MigrationsSource); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}

		store := history.NewStore(db)
		opts.Recorder = store
		deps.Results = store
	} else {
		log.Printf("[HISTORY] DATABASE_URL not set - settled matches are only logged")
	}

	// Optional lifecycle feed
	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()

		publisher := redis.NewPublisher(rdb, cfg.RedisEventsChannel, 256)
		stopFeed = startFeed(publisher)
		opts.Sink = publisher
	} else {
		log.Printf("[REDIS] REDIS_URL not set - lifecycle feed disabled")
	}

	client := ledger.NewClient(cfg.APIBase, cfg.APIKey, cfg.LedgerTimeout)
	reconciler := ledger.NewReconciler(client, ledger.Policy{
		RegisterAttempts:    cfg.ChainRegisterAttempts,
		RegisterBackoffStep: cfg.ChainRegisterBackoff,
		ConfirmAttempts:     cfg.ChainConfirmAttempts,
		PollInterval:        cfg.ChainPollInterval,
	})
	log.Printf("[CHAIN] Ledger API at %s", cfg.APIBase)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub()
	go hub.Run(hubCtx)

	manager := game.NewManager(hub, reconciler, opts)
	deps.Matches = manager
	deps.Hub = hub
	deps.Socket = ws.NewHandler(hub, manager, middleware.OriginChecker(cfg))

	// Set up Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, deps, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting tic-tac-toe coordinator on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ResultReportTimeout+5*time.Second)
	defer cancel()

	shutdown(shutdownCtx, srv, manager, stopFeed, stopHub)
}

type httpServer interface {
	Shutdown(ctx context.Context) error
}

type sessionCloser interface {
	Close(ctx context.Context) error
}

// startFeed runs the publisher on its own context so events produced while
// sessions shut down still reach Redis. The returned func flushes and waits.
func startFeed(p *redis.Publisher) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// shutdown stops accepting requests, settles live sessions, then stops
// whatever consumes their events.
func shutdown(ctx context.Context, srv httpServer, sessions sessionCloser, after ...func()) {
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := sessions.Close(ctx); err != nil {
		log.Printf("[RESULT] Pending result reports did not finish: %v", err)
	}
	for _, stop := range after {
		stop()
	}
}
