package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Lingjia-code/CodeShare-Classroom/internal/api"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/broadcast"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/config"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/database"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/editsync"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/execrelay"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/help"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/presence"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/router"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/websocket"
	dbconfig "github.com/Lingjia-code/CodeShare-Classroom/pkg/database"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/metrics"
)

// Application owns the component graph and the HTTP server lifecycle.
// Construction order follows the dependency direction: storage first,
// then the realtime components, then the transports that drive them.
type Application struct {
	config   *config.Config
	db       *database.Manager
	registry *presence.Registry
	server   *http.Server
}

// New builds a fully wired application. The database is opened and
// migrated here so a misconfigured deployment fails at startup, not on
// the first edit.
func New(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbCfg := dbconfig.DefaultConfig()
	dbCfg.DatabasePath = cfg.Database.Path

	db, err := database.NewManager(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	migrations := dbconfig.NewMigrationManager(db.GetDB(), dbCfg.MigrationsPath)
	if err := migrations.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := migrations.ValidateSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	registry := presence.NewRegistry()
	broadcaster := broadcast.NewBroadcaster(registry)
	edits := editsync.NewController(db, broadcaster)
	helpWorkflow := help.NewWorkflow(broadcaster)
	exec := execrelay.NewRelay(broadcaster)
	limiter := router.NewRateLimiter(cfg.Limits.EventsPerMinute, time.Minute)

	eventRouter := router.NewRouter(registry, broadcaster, edits, helpWorkflow, exec, db, limiter)
	wsHandler := websocket.NewHandler(eventRouter, cfg.WebSocket)
	apiServer := api.NewServer(db, registry)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Handler())
	mux.HandleFunc("/health", apiServer.HandleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:   cfg,
		db:       db,
		registry: registry,
		server:   server,
	}, nil
}

// Start runs the HTTP server until ctx is cancelled or the listener fails.
func (a *Application) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		log.Printf("Listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		return nil
	}
}

// Stop shuts the HTTP server down gracefully, then closes the database.
// Open WebSockets are torn down by the server shutdown; each connection's
// read pump exits and runs its own disconnect teardown.
func (a *Application) Stop(ctx context.Context) error {
	log.Println("Shutting down")

	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	log.Println("Shutdown complete")
	return nil
}
