package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/aggregation"
	"github.com/yanqian/ocean-insight/internal/domain/chat"
	"github.com/yanqian/ocean-insight/internal/infra/config"
	"github.com/yanqian/ocean-insight/internal/infra/queue"
)

// App encapsulates the HTTP server lifecycle and the background workers
// that live beside it.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	cache  *aggregation.Cache
	jobs   queue.HandlerQueue
}

// NewApp is used by Wire to build the runnable app. It routes queued jobs
// to the chat service.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, cache *aggregation.Cache, jobs queue.HandlerQueue, svc chat.Service) *App {
	app := &App{
		cfg:    cfg,
		logger: logger.With("component", "bootstrap"),
		server: server,
		cache:  cache,
		jobs:   jobs,
	}
	jobs.SetHandler(func(ctx context.Context, name string, payload map[string]any) {
		if err := svc.HandleJob(ctx, name, payload); err != nil {
			app.logger.Error("background job failed", "job", name, "error", err)
		}
	})
	return app
}

// Run starts the HTTP server and the cache sweeper and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	if a.cfg.Cache.SweepInterval > 0 {
		go a.cache.RunSweeper(sweepCtx, a.cfg.Cache.SweepInterval)
	}

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		err := a.server.Shutdown(shutdownCtx)
		a.drainJobs()
		return err
	case err := <-errCh:
		a.drainJobs()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) drainJobs() {
	switch q := a.jobs.(type) {
	case interface{ Close() }:
		q.Close()
	case interface{ Wait() }:
		q.Wait()
	}
}
