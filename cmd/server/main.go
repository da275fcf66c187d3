/*
main.go - Application entry point

PURPOSE:
  Starts the finance tracker HTTP server. Builds the storage backend, the
  tracker and the API handler once and injects them; nothing is global
  except the default slog logger.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment), then apply flags
  2. Build the logger
  3. Open the storage backend
  4. Create tracker, sessions and API handler
  5. Run the HTTP server and the session sweeper until a signal arrives

COMMAND-LINE FLAGS:
  -env       .env file to load (default: .env)
  -port      HTTP server port (overrides SERVER_PORT)
  -storage   file | sqlite | memory (overrides STORAGE_DRIVER)
  -path      data directory or database file (overrides STORAGE_PATH)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SERVER_SHUTDOWN_TIMEOUT)
  3. Close the storage backend
  4. Exit

EXAMPLES:
  # Flat files under ./data (default)
  ./server

  # SQLite database
  ./server -storage=sqlite -path=./data/ledger.db

  # Throwaway in-memory run on another port
  ./server -storage=memory -port=3000

SEE ALSO:
  - config/config.go: all environment keys
  - api/server.go: Router configuration
  - tracker/tracker.go: the operations behind each route
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/warp/pocket-ledger/api"
	"github.com/warp/pocket-ledger/config"
	"github.com/warp/pocket-ledger/logging"
	"github.com/warp/pocket-ledger/store"
	"github.com/warp/pocket-ledger/store/file"
	"github.com/warp/pocket-ledger/store/memory"
	"github.com/warp/pocket-ledger/store/sqlite"
	"github.com/warp/pocket-ledger/tracker"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Flags
	envFile := flag.String("env", ".env", "environment file")
	port := flag.Int("port", 0, "HTTP server port (overrides SERVER_PORT)")
	driver := flag.String("storage", "", "storage driver: file, sqlite or memory (overrides STORAGE_DRIVER)")
	path := flag.String("path", "", "data directory or database file (overrides STORAGE_PATH)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *driver != "" {
		cfg.Storage.Driver = *driver
	}
	if *path != "" {
		cfg.Storage.Path = *path
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func run(cfg *config.App, logger *slog.Logger) error {
	backend, err := openBackend(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	defer func() {
		if err := backend.Shutdown(); err != nil {
			logger.Error("Failed to close storage", "err", err)
		}
	}()
	logger.Info("Storage ready", "driver", cfg.Storage.Driver, "path", cfg.Storage.Path)

	sessions := api.NewSessions(cfg.Session.TTL)
	handler := api.NewHandler(tracker.New(backend, logger), sessions, logger)
	handler.CookieName = cfg.Session.Cookie
	handler.SecureCookie = cfg.Session.Secure

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Run(ctx, cfg.Session.SweepInterval)
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openBackend(cfg config.Storage) (store.Backend, error) {
	switch cfg.Driver {
	case config.DriverFile:
		return file.New(cfg.Path)
	case config.DriverSQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return store.Backend{}, err
			}
		}
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return store.Backend{}, err
		}
		return s.Backend(), nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return store.Backend{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
