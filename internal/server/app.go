// Package server initializes and runs the sync service: it wires the
// document and asset stores, the project index, the coordinator and the HTTP
// API, and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/newwaysadmin/slipsync/internal/logging"
	"github.com/newwaysadmin/slipsync/internal/server/assets"
	"github.com/newwaysadmin/slipsync/internal/server/config"
	"github.com/newwaysadmin/slipsync/internal/server/httpapi"
	"github.com/newwaysadmin/slipsync/internal/server/index"
	"github.com/newwaysadmin/slipsync/internal/server/projects"
	"github.com/newwaysadmin/slipsync/internal/server/storage"
)

type App struct {
	config *config.Config
	logger logging.Logger
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	docs, err := storage.NewFileStore(filepath.Join(cfg.DataDir, "projects"))
	if err != nil {
		return nil, fmt.Errorf("document store init error: %w", err)
	}

	var assetStore storage.AssetStore
	if cfg.S3BaseEndpoint != "" {
		assetStore, err = storage.NewS3Store(ctx, storage.S3Options{
			Region:       cfg.S3Region,
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("asset store init error: %w", err)
		}
	} else {
		assetStore, err = storage.NewFileStore(filepath.Join(cfg.DataDir, "assets"))
		if err != nil {
			return nil, fmt.Errorf("asset store init error: %w", err)
		}
	}

	var idx index.Index
	if cfg.DatabaseDSN != "" {
		pg, _, err := index.OpenPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("index init error: %w", err)
		}
		n, err := index.Rebuild(ctx, docs, pg)
		if err != nil {
			return nil, fmt.Errorf("index rebuild error: %w", err)
		}
		logger.Info(ctx, "project index rebuilt", "projects", n)
		idx = pg
	} else {
		idx = index.NewMemory(docs)
	}

	syncSvc := projects.NewService(docs, idx, logger)
	assetSvc := assets.NewService(assetStore, logger)

	var origins []string
	if cfg.CORSOrigin != "" {
		origins = []string{cfg.CORSOrigin}
	}

	srv := httpapi.NewServer(cfg.EndpointAddr,
		httpapi.NewHandler(syncSvc, assetSvc, logger), origins, logger)

	return &App{config: cfg, logger: logger, server: srv}, nil
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

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()
}
