/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the revenue share server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment, flags)
  2. Initialize SQLite store
  3. Create settlement service and API handler
  4. Start payout scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port                HTTP server port (default: 8080)
  -db                  SQLite database path (default: revenue.db)
                       Use ":memory:" for in-memory database
  -currency            Payout currency (default: USD)
  -scheduler-interval  Payout scheduler tick (default: 1h, 0 disables)
  -settlement-hold     Hold after period end (default: 72h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the payout scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/revenue.db"

  # Run in-memory with a fast scheduler for demos
  ./server -db=":memory:" -scheduler-interval=1m -settlement-hold=0s

ENVIRONMENT:
  See config/config.go. Flags override environment variables.

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Payout scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/revenue-share/api"
	"github.com/warp/revenue-share/config"
	"github.com/warp/revenue-share/settlement"
	"github.com/warp/revenue-share/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize service and handler
	svc := settlement.NewService(store, cfg.Currency)
	handler := api.NewHandler(svc)

	scheduler := api.NewPayoutScheduler(svc)
	scheduler.CheckInterval = cfg.SchedulerInterval
	scheduler.SettlementHold = cfg.SettlementHold
	handler.Scheduler = scheduler
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d (db=%s, currency=%s)", cfg.Port, cfg.DBPath, cfg.Currency)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
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
		return
	}

	log.Println("Server stopped")
}
