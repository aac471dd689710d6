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
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"hydrotwin/internal/changes"
	"hydrotwin/internal/config"
	"hydrotwin/internal/dashboard"
	"hydrotwin/internal/domain"
	"hydrotwin/internal/handler"
	"hydrotwin/internal/hub"
	"hydrotwin/internal/logging"
	"hydrotwin/internal/metrics"
	"hydrotwin/internal/render"
	"hydrotwin/internal/repository"
	"hydrotwin/internal/repository/postgres"
	"hydrotwin/internal/repository/sqlite"
	"hydrotwin/internal/service"
	"hydrotwin/internal/topology"
	"hydrotwin/internal/watcher"
)

type flags struct {
	addr        string
	dbPath      string
	configPath  string
	seedPath    string
	replaceSeed bool
	noMount     bool
}

func main() {
	var f flags
	flag.StringVar(&f.addr, "addr", "", "HTTP listen address (default "+config.DefaultAddr+")")
	flag.StringVar(&f.dbPath, "db", "", "SQLite database path (default "+config.DefaultDatabasePath+")")
	flag.StringVar(&f.configPath, "config", "", "config file path (default: search standard locations)")
	flag.StringVar(&f.seedPath, "seed", "", "YAML or JSON network to import on startup")
	flag.BoolVar(&f.replaceSeed, "replace-seed", false, "clear the store before importing the seed")
	flag.BoolVar(&f.noMount, "no-mount", false, "start with the dashboard unmounted")
	flag.Parse()

	cfg, cfgPath, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hydrotwin: %v\n", err)
		os.Exit(1)
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.dbPath != "" {
		cfg.Database.Path = f.dbPath
	}
	if f.seedPath != "" {
		cfg.Database.Seed = f.seedPath
	}

	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, cfgPath, f, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// backend is the topology source plus the optional writable store behind it
type backend struct {
	source topology.Source
	store  repository.Store
	pg     *postgres.Store
}

func (b *backend) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		store, err := postgres.New(ctx, cfg.Source.PostgresDSN, cfg.Changes.NotifyChannel)
		if err != nil {
			return nil, err
		}
		logger.Info("topology source: postgres")
		return &backend{source: store, store: store, pg: store}, nil

	case config.SourceHTTP:
		logger.Info("topology source: http", "url", cfg.Source.HTTPURL)
		return &backend{source: topology.NewHTTPSource(cfg.Source.HTTPURL, cfg.Source.Timeout.Duration())}, nil

	default:
		repo, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("topology source: sqlite", "path", cfg.Database.Path)
		return &backend{source: repo, store: repo}, nil
	}
}

// openChannel returns the change channel and, for the in-process bus, the
// publisher operator actions feed
func openChannel(cfg *config.Config, b *backend, bus *changes.Bus, logger *slog.Logger) (changes.Channel, service.Publisher, error) {
	switch cfg.Changes.Kind {
	case config.ChangesPostgres:
		if b.pg == nil {
			return nil, nil, errors.New("changes.kind postgres requires source.kind postgres")
		}
		return b.pg.Notifier().WithLogger(logger), nil, nil
	case config.ChangesWebSocket:
		return changes.NewWebSocketChannel(cfg.Changes.WebSocketURL, logger), nil, nil
	default:
		return bus, bus, nil
	}
}

func run(ctx context.Context, cfg *config.Config, cfgPath string, f flags, logger *slog.Logger) error {
	if cfgPath != "" {
		logger.Info("config loaded", "path", cfgPath)
	}
	logger.Info("starting hydrotwin", "config", cfg.Summary())

	reg := metrics.DefaultRegistry()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open topology source: %w", err)
	}
	defer b.Close()

	bus := changes.NewBus(logger)
	defer bus.Close()
	channel, publisher, err := openChannel(cfg, b, bus, logger)
	if err != nil {
		return err
	}

	var svc *service.NetworkService
	if b.store != nil {
		svc = service.NewNetworkService(b.store, publisher, logger)
		if cfg.Database.Seed != "" {
			result, err := svc.ImportFile(ctx, cfg.Database.Seed, f.replaceSeed)
			if err != nil {
				return fmt.Errorf("import seed %s: %w", cfg.Database.Seed, err)
			}
			logger.Info("seed imported", "path", cfg.Database.Seed, "nodes", result.Nodes, "edges", result.Edges)
		}
	}

	// The hub is the drawing host: maps are drawn once a browser attaches
	h := hub.New(logger, reg)
	manager := render.NewManager(render.StaticLibrary(h), cfg.RenderOptions(), logger, reg)
	session := dashboard.New(dashboard.Config{
		PollInterval:   cfg.Topology.PollInterval.Duration(),
		OverrideMaxAge: cfg.Overrides.MaxAge.Duration(),
		Palette:        cfg.Palette,
	}, b.source, channel, manager, h, logger, reg)

	h.OnReady(func() {
		if err := session.HostReady(ctx); err != nil {
			logger.Warn("deferred map mount failed", "error", err)
		}
	})

	mux := http.NewServeMux()
	handler.New(session, svc, logger).Routes(mux)
	mux.Handle("GET /events", h)
	mux.Handle("GET "+changes.EdgesFeedPath, handler.NewFeedHandler(bus, logger))
	mux.Handle("GET /metrics", reg.Handler())

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handler.Chain(mux,
			handler.Recover(logger),
			handler.CORS,
			handler.Logger(logger, reg),
		),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no WriteTimeout: /events and /ws/edges are long-lived streams
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Run(gctx.Done())
		return nil
	})

	g.Go(func() error {
		return session.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfgPath != "" {
		g.Go(func() error {
			return watchConfig(gctx, cfgPath, cfg.Center(), session, logger)
		})
	}

	if !f.noMount {
		if err := session.Mount(ctx); err != nil {
			logger.Error("initial mount failed", "error", err)
		}
	}

	return g.Wait()
}

// watchConfig recenters the map when the config file's map center changes.
// Other settings take effect on restart.
func watchConfig(ctx context.Context, path string, center domain.Position, session *dashboard.Session, logger *slog.Logger) error {
	changed := make(chan struct{}, 1)
	w := watcher.New(path, func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, logger)

	errc := make(chan error, 1)
	go func() { errc <- w.Watch(ctx) }()

	for {
		select {
		case <-changed:
			cfg, _, err := config.LoadFromPath(path)
			if err != nil {
				logger.Warn("ignoring config change", "path", path, "error", err)
				continue
			}
			next := cfg.Center()
			if next == center {
				continue
			}
			if err := session.Recenter(ctx, next); err != nil {
				logger.Warn("recenter failed", "error", err)
				continue
			}
			logger.Info("map recentered from config", "lat", next.X, "lng", next.Y)
			center = next
		case err := <-errc:
			if err != nil && ctx.Err() == nil {
				// keep serving without live config
				logger.Warn("config watcher stopped", "error", err)
			}
			return nil
		}
	}
}
