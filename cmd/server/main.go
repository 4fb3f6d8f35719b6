/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the kirana ledger & fulfillment server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config (file, .env, environment)
  2. Set the store time zone
  3. Open the store (SQLite file or PostgreSQL pool)
  4. Connect Redis for the billing cache (optional)
  5. Create API handler, router and maintenance scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Config file path (default: configs/config.yaml)
  -port    HTTP server port (overrides server.port)
  -db      SQLite database path (overrides database.path)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close cache and database connections

EXAMPLES:
  # Run with file database
  ./server -db="./data/kirana.db"

  # Run against PostgreSQL
  DATABASE_DRIVER=postgres DATABASE_URL=postgres://... ./server

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/kirana-ledger/api"
	"github.com/warp/kirana-ledger/cache"
	"github.com/warp/kirana-ledger/config"
	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/store/postgres"
	"github.com/warp/kirana-ledger/store/sqlite"
)

type backend interface {
	api.Backend
	io.Closer
}

func main() {
	// Flags
	configPath := flag.String("config", config.DefaultConfigFile, "Config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = *dbPath
	}

	if err := core.SetLocation(cfg.Store.Timezone); err != nil {
		log.Fatalf("Invalid store timezone: %v", err)
	}
	defaults, err := cfg.StoreDefaults()
	if err != nil {
		log.Fatalf("Invalid store settings: %v", err)
	}

	// Initialize store
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, defaults)

	if cfg.Redis.Enabled {
		if rc := cache.New(cfg.Redis.Addr, cfg.Redis.Password); rc != nil {
			handler.UseCache(rc, rc, cfg.Redis.TTL)
			defer rc.Close()
		}
	}

	scheduler := api.NewMaintenanceScheduler(handler)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.AutoMigrate = cfg.Scheduler.AutoMigrate
	scheduler.AutoMilkLogs = cfg.Scheduler.AutoMilkLogs
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler, cfg.Server.CorsAllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d (store: %s)", cfg.Server.Port, cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func openStore(cfg *config.Config) (backend, error) {
	switch cfg.Database.Driver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return postgres.New(ctx, cfg.Database.URL)
	default:
		return sqlite.New(cfg.Database.Path)
	}
}
