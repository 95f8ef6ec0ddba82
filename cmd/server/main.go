/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the studio scheduler server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load the YAML config file, then apply command-line overrides
  2. Initialize the SQLite store
  3. Wire the engine, session manager, verifier and notifier
  4. Configure the HTTP router
  5. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file path (default: config.yaml; missing file
           means defaults)
  -listen  HTTP listen address (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

NOTIFICATIONS:
  With a bot token configured, booking and moderation events go to the
  operator's Telegram chat and affected users. Without one, events are
  only logged — but authentication will reject every login, since init
  data cannot be verified without the bot token.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with a config file
  ./server -config=/etc/studio/config.yaml

  # Run against an in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration file format
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/bandroom/studio-scheduler/api"
	"github.com/bandroom/studio-scheduler/auth"
	"github.com/bandroom/studio-scheduler/config"
	"github.com/bandroom/studio-scheduler/notify"
	"github.com/bandroom/studio-scheduler/schedule"
	"github.com/bandroom/studio-scheduler/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "config.yaml", "YAML config file path")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Notifier: Telegram when a bot token is configured, log-only otherwise.
	var (
		notifier   schedule.Notifier
		moderation api.ModerationNotifier
	)
	if cfg.BotToken != "" {
		tg := notify.NewTelegram(cfg.BotToken, cfg.OperatorChatID, store)
		notifier, moderation = tg, tg
	} else {
		log.Printf("Warning: no bot token configured, notifications are log-only")
		l := notify.Log{}
		notifier, moderation = l, l
	}

	engine := schedule.NewEngine(store, notifier)
	sessions := auth.NewSessions(store, store, cfg.SessionTTL())
	verifier := auth.NewVerifier(cfg.BotToken)

	handler := api.NewHandler(engine, store, sessions, verifier, moderation)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodic session cleanup; expired tokens are also rejected on
	// sight, this just keeps the table from growing.
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if err := sessions.PurgeExpired(cleanupCtx); err != nil {
					log.Printf("Warning: session cleanup failed: %v", err)
				}
			}
		}
	}()

	// Start server in goroutine
	go func() {
		log.Printf("🎸 Studio scheduler listening on %s", cfg.Listen)
		log.Printf("📅 API available at http://%s/api", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
