package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/ascenthq/ascent/api"
	dbfs "github.com/ascenthq/ascent/db"
	"github.com/ascenthq/ascent/internal/campaigns"
	"github.com/ascenthq/ascent/internal/config"
	"github.com/ascenthq/ascent/internal/db"
	"github.com/ascenthq/ascent/internal/directory"
	"github.com/ascenthq/ascent/internal/insights"
	"github.com/ascenthq/ascent/internal/invitations"
	"github.com/ascenthq/ascent/internal/mailer"
	"github.com/ascenthq/ascent/internal/ratelimit"
	"github.com/ascenthq/ascent/internal/repository/sqlite"
	"github.com/ascenthq/ascent/internal/webhooks"
	"github.com/ascenthq/ascent/pkg/courier"
	"github.com/ascenthq/ascent/pkg/idp"
	"github.com/ascenthq/ascent/pkg/insight"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	courier.SetLogger(logger)
	idp.SetLogger(logger)
	insight.SetLogger(logger)

	log.Printf("Starting ascent server version %s (built at %s)", version, buildTime)

	ctx := context.Background()

	// Open database connection and apply migrations
	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := db.Migrate(ctx, conn, dbfs.Migrations); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	// Repository
	repo := sqlite.New(conn, logger)

	// External provider clients
	sender, err := courier.NewDefaultClient(cfg.Courier)
	if err != nil {
		log.Fatalf("Failed to create email client: %v", err)
	}
	provider, err := idp.NewClient(cfg.Identity, nil)
	if err != nil {
		log.Fatalf("Failed to create identity client: %v", err)
	}
	insightClient, err := insight.NewClient(cfg.Insights, nil)
	if err != nil {
		log.Fatalf("Failed to create insight client: %v", err)
	}

	// Domain services
	outbox := mailer.NewOutbox(conn)
	dir := directory.New(repo, logger)
	store := invitations.NewStore(repo, repo, repo, repo, cfg.BaseURL, outbox, logger)
	limiter := ratelimit.NewWindow(cfg.RateLimit.CampaignQuota, cfg.RateLimit.Window)
	manager := campaigns.NewManager(repo, repo, repo, store, dir, limiter, cfg.BaseURL, logger)
	dispatcher := mailer.NewDispatcher(sender, logger)
	generator := insights.NewGenerator(repo, insightClient, logger)

	sync, err := webhooks.NewSynchronizer(repo, repo, provider, logger)
	if err != nil {
		log.Fatalf("Failed to create webhook synchronizer: %v", err)
	}

	// Outbox worker pool
	pool := mailer.NewWorkerPool(outbox, map[string]mailer.Handler{
		"email.send":        mailer.SendHandler(sender, store, logger),
		"insights.generate": generator.Handler(),
	}, logger, cfg.Mailer.Workers)
	pool.Start(ctx)

	handler := api.SetupRoutes(cfg, version, buildTime, api.Handlers{
		System:        &api.SystemHandler{},
		Auth:          api.NewAuthHandler(repo, cfg.JWTSecret, cfg.TokenDuration),
		Invitations:   api.NewInvitationsHandler(store, dir, outbox),
		Campaigns:     api.NewCampaignsHandler(manager, dispatcher, outbox, store, repo, repo, cfg.Mailer),
		Organizations: api.NewOrganizationsHandler(repo, dir),
		Users:         api.NewUsersHandler(store),
		Assessments:   api.NewAssessmentsHandler(repo, repo),
		Webhooks:      api.NewWebhooksHandler(sync),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Drain workers before closing the database
	pool.Stop()

	if err := sender.Close(); err != nil {
		log.Printf("Error closing email client: %v", err)
	}
	if err := conn.Close(); err != nil {
		log.Printf("Error closing DB: %v", err)
	}

	log.Println("Server exited")
}
