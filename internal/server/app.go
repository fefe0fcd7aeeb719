// Package server initializes and runs the storage server: database,
// physical file stores, HTTP API and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/logging"
	"github.com/almers2006/tresor/internal/server/config"
	"github.com/almers2006/tresor/internal/server/db"
	"github.com/almers2006/tresor/internal/server/httpapi"
	"github.com/almers2006/tresor/internal/server/storage"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	manager  *db.Manager
	sessions *storage.ChunkSessionStore
	server   *http.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	manager, err := db.NewManager(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	uploads, err := storage.NewActiveUploadStore(c.StorageDir, logger)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	sessions := storage.NewChunkSessionStore(uploads.FilesDir(), common.DownloadSessionExpiry, logger)

	handler := httpapi.NewHandler(uploads, sessions, manager.Directory(), c.QuotaBytes, logger)

	srv := &http.Server{
		Addr:    c.EndpointAddr,
		Handler: httpapi.NewRouter(handler, []byte(c.SecretKey)),
	}

	return &App{
		config:   c,
		logger:   logger,
		manager:  manager,
		sessions: sessions,
		server:   srv,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "server error", "error", err)
		}
	case <-ctx.Done():
		app.logger.Info(ctx, "Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "shutdown error", "error", err)
		}
	}

	app.sessions.Close()
	if err := app.manager.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
