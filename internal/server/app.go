// Package server assembles the blog server from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/blog-ssr/internal/api"
	"github.com/JakeFAU/blog-ssr/internal/article"
	"github.com/JakeFAU/blog-ssr/internal/auth"
	"github.com/JakeFAU/blog-ssr/internal/clock/system"
	"github.com/JakeFAU/blog-ssr/internal/config"
	"github.com/JakeFAU/blog-ssr/internal/id/uuid"
	"github.com/JakeFAU/blog-ssr/internal/logging"
	"github.com/JakeFAU/blog-ssr/internal/metrics"
	"github.com/JakeFAU/blog-ssr/internal/render"
	"github.com/JakeFAU/blog-ssr/internal/spa"
	"github.com/JakeFAU/blog-ssr/internal/ssr"
	"github.com/JakeFAU/blog-ssr/internal/storage"
	"github.com/JakeFAU/blog-ssr/internal/telemetry"
	"github.com/JakeFAU/blog-ssr/internal/watcher"
)

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	store          article.Store
	holder         *ssr.Holder
	apiServer      *api.Server
	build          ssr.BuildFunc
	tracerShutdown telemetry.ShutdownFunc
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger.Info("building application",
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.App.Mode),
		zap.String("store", cfg.Store.Backend),
	)

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	metrics.Init()

	store, err := storage.Open(ctx, cfg.Store, uuid.New(), system.New())
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	app := &App{
		cfg:            cfg,
		logger:         logger,
		store:          store,
		holder:         ssr.NewHolder(),
		tracerShutdown: shutdown,
	}

	cache := render.NewCache(cfg.Render.CacheSize, cfg.Render.CacheTTL)
	app.build = func() (*render.Renderer, error) {
		return render.LoadFromFiles(cfg.Render.BundlePath, cfg.Render.TemplatePath, render.Options{Cache: cache})
	}

	var distDirs []string
	if cfg.Production() {
		distDirs = []string{cfg.Static.DistDir}
	}

	app.apiServer = api.NewServer(api.Deps{
		Store:    store,
		Verifier: auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		Gate:     ssr.NewGate(app.holder, cfg.App.Placeholder),
		Pages: ssr.NewDispatcher(app.holder, ssr.Options{
			Title:       cfg.App.Title,
			Scripts:     cfg.Assets.Scripts,
			Development: !cfg.Production(),
			Logger:      logger.Named("ssr"),
		}),
		Admin: spa.New(spa.Config{
			Dir:    cfg.Admin.Dir,
			Index:  cfg.Admin.Index,
			Logger: logger.Named("admin"),
		}),
		StaticDirs: []string{cfg.Static.Dir},
		DistDirs:   distDirs,
		Logger:     logger.Named("api"),
	})

	return app, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves on the configured port until the context is canceled or the
// process receives SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the renderer lifecycle and the HTTP server on ln, then shuts
// everything down once ctx ends or a component fails.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}

	if a.cfg.Production() {
		g.Go(func() error {
			if err := a.holder.Rebuild(a.build); err != nil {
				return fmt.Errorf("build renderer: %w", err)
			}
			a.logger.Info("renderer ready")
			return nil
		})
	} else {
		w, err := a.startWatcher(gctx)
		if err != nil {
			a.Close(context.Background())
			return err
		}
		defer w.Stop()
	}

	g.Go(func() error {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.Close(closeCtx)
	return err
}

// startWatcher builds once, tolerating a missing bundle, and rebuilds on
// every change to the bundle or template.
func (a *App) startWatcher(ctx context.Context) (*watcher.Watcher, error) {
	if err := a.holder.Rebuild(a.build); err != nil {
		a.logger.Warn("initial render build failed, serving placeholder", zap.Error(err))
	}
	w, err := watcher.New(watcher.Config{
		Files:    []string{a.cfg.Render.BundlePath, a.cfg.Render.TemplatePath},
		Debounce: a.cfg.Render.WatchDebounce,
		OnChange: func() error { return a.holder.Rebuild(a.build) },
		Logger:   a.logger.Named("watcher"),
	})
	if err != nil {
		return nil, fmt.Errorf("watcher init failed: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, fmt.Errorf("watcher start failed: %w", err)
	}
	return w, nil
}

// Close releases the store and flushes telemetry.
func (a *App) Close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("article store close failed", zap.Error(err))
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}
