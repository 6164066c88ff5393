// Package client initializes and runs the device agent: it opens the local
// store, wires the server client and the sync agent, and repeats sync rounds
// until interrupted.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newwaysadmin/slipsync/internal/client/agent"
	"github.com/newwaysadmin/slipsync/internal/client/config"
	"github.com/newwaysadmin/slipsync/internal/client/serverapi"
	"github.com/newwaysadmin/slipsync/internal/client/store"
	"github.com/newwaysadmin/slipsync/internal/filex"
	"github.com/newwaysadmin/slipsync/internal/logging"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  *store.Store
	agent  *agent.Agent
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	assetDir, err := filex.EnsureDir(cfg.AssetDir)
	if err != nil {
		return nil, fmt.Errorf("asset dir init error: %w", err)
	}

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("local store init error: %w", err)
	}

	client := serverapi.New(cfg.ServerAddr, cfg.DeviceID, logger)
	ag := agent.New(st, client, assetDir, cfg.RetentionAge.Duration, logger)

	return &App{config: cfg, logger: logger, store: st, agent: ag}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run syncs immediately, then on every tick of the configured interval,
// until the context is cancelled.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting agent...", "device", app.config.DeviceID)

	app.initSignalHandler(cancelFunc)
	defer app.store.Close()

	app.syncOnce(ctx)

	ticker := time.NewTicker(app.config.SyncInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			app.logger.Info(ctx, "Stopping agent...")
			return
		case <-ticker.C:
			app.syncOnce(ctx)
		}
	}
}

func (app *App) syncOnce(ctx context.Context) {
	if _, err := app.agent.RunOnce(ctx); err != nil {
		app.logger.Error(ctx, "sync round failed", "error", err.Error())
	}
}
