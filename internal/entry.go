// Package internal wires the knowledge base components into an application.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/brain/internal/changes"
	"github.com/starford/brain/internal/docstore"
	"github.com/starford/brain/internal/index"
	"github.com/starford/brain/internal/mcpserver"
	"github.com/starford/brain/internal/monitor"
	"github.com/starford/brain/internal/notify"
	"github.com/starford/brain/internal/regen"
	"github.com/starford/brain/internal/storage"
	"github.com/starford/brain/internal/validate"
)

// App holds the wired components of one knowledge base root.
type App struct {
	Config    *Config
	Logger    *slog.Logger
	FS        *storage.FS
	Store     *docstore.Store
	Regen     *regen.Regenerator
	Detector  *changes.Detector
	Validator *validate.Validator

	now     func() time.Time
	monitor *monitor.Monitor
	catalog *index.DB
}

// NewLogger builds the structured JSON logger used by every command.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Open builds the application for the configured root. The monitor and the
// search catalog are created on first use.
func Open(opts ...Option) (*App, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		out := app.logOutput
		if out == nil {
			out = os.Stderr
		}
		logger = NewLogger(out, cfg.App.LogLevel)
		slog.SetDefault(logger)
	}
	now := app.now
	if now == nil {
		now = time.Now
	}

	fs, err := storage.NewFS(cfg.Store.Root, storage.WithExclude(cfg.Store.ExcludePatterns()...))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	// Resolve everything else against the absolute root from here on.
	cfg.Store.Root = fs.Root()

	logger.Debug("Configuration loaded",
		slog.String("root", cfg.Store.Root),
		slog.String("state_file", cfg.Resolve(cfg.State.File)),
		slog.String("catalog_path", cfg.Resolve(cfg.Catalog.Path)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	det, err := changes.NewDetector(cfg.Store.Root, cfg.Resolve(cfg.State.File),
		changes.WithClock(now), changes.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init change detector: %w", err)
	}

	store := docstore.New(fs, docstore.WithClock(now), docstore.WithLogger(logger))
	rg := regen.New(store,
		regen.WithPaths(cfg.Store.Paths),
		regen.WithDetector(det),
		regen.WithClock(now),
		regen.WithLogger(logger))
	store.SetIndexRebuilder(rg)

	return &App{
		Config:    cfg,
		Logger:    logger,
		FS:        fs,
		Store:     store,
		Regen:     rg,
		Detector:  det,
		Validator: validate.New(store, logger),
		now:       now,
	}, nil
}

// Monitor returns the watched-resource monitor, loading the notifier
// configuration on first use. A missing notifier configuration file is
// created with defaults.
func (a *App) Monitor() (*monitor.Monitor, error) {
	if a.monitor != nil {
		return a.monitor, nil
	}
	ncfg, err := notify.LoadConfig(a.Config.Resolve(a.Config.State.NotifierConfig))
	if err != nil {
		return nil, fmt.Errorf("init notifier: %w", err)
	}
	dispatcher := notify.FromConfig(ncfg, a.Config.Store.Root,
		notify.WithClock(a.now), notify.WithLogger(a.Logger))

	paths := a.Config.Store.Paths
	mon, err := monitor.New(a.FS, a.Detector,
		monitor.WithResources(a.Config.Resources),
		monitor.WithSender(dispatcher),
		monitor.WithOutputs(paths.Changelog, paths.Summary),
		monitor.WithOnTick(a.refreshViews),
		monitor.WithClock(a.now),
		monitor.WithLogger(a.Logger))
	if err != nil {
		return nil, fmt.Errorf("init monitor: %w", err)
	}
	a.Logger.Debug("Monitor ready", slog.Int("transports", dispatcher.Len()), slog.Int("resources", len(a.Config.Resources)))
	a.monitor = mon
	return mon, nil
}

func (a *App) refreshViews(ctx context.Context) error {
	statuses, err := a.Regen.Refresh(ctx, regen.RefreshOptions{})
	if err != nil {
		return err
	}
	for _, st := range statuses {
		if st.Written {
			a.Logger.Info("View regenerated", slog.String("view", st.View), slog.String("path", st.Path))
		}
	}
	return nil
}

// Catalog opens the SQLite search catalog on first use.
func (a *App) Catalog() (*index.DB, error) {
	if a.catalog != nil {
		return a.catalog, nil
	}
	p := a.Config.Resolve(a.Config.Catalog.Path)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	db, err := index.Open(p)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	a.catalog = db
	return db, nil
}

// Search syncs the catalog with the tree and runs query against it.
func (a *App) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	db, err := a.Catalog()
	if err != nil {
		return nil, err
	}
	stats, err := index.Sync(ctx, db, a.FS, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug("Catalog synced",
		slog.Int("indexed", stats.Indexed),
		slog.Int("removed", stats.Removed),
		slog.String("duration", stats.Duration.String()))
	return db.Search(query, limit)
}

// MCPServer builds the MCP tool server over this application.
func (a *App) MCPServer() (*mcpserver.Server, error) {
	db, err := a.Catalog()
	if err != nil {
		return nil, err
	}
	return mcpserver.New(mcpserver.Deps{
		Store:     a.Store,
		Regen:     a.Regen,
		Validator: a.Validator,
		Catalog:   db,
		Logger:    a.Logger,
	}), nil
}

// Watch polls the watched resources and refreshes stale views every
// interval until ctx is cancelled or the process receives SIGINT/SIGTERM.
func (a *App) Watch(ctx context.Context, interval time.Duration) error {
	mon, err := a.Monitor()
	if err != nil {
		return err
	}
	if interval <= 0 {
		interval = a.Config.Watch.Interval
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return mon.Watch(gCtx, interval)
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.Logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error("Watch error", slog.String("error", err.Error()))
		return err
	}

	a.Logger.Info("Watch stopped")
	return nil
}

// Close releases the search catalog if it was opened.
func (a *App) Close() error {
	if a.catalog == nil {
		return nil
	}
	err := a.catalog.Close()
	a.catalog = nil
	return err
}
