package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/fightlog/internal/adapters/http/api"
	"github.com/okian/fightlog/internal/adapters/http/site"
	"github.com/okian/fightlog/internal/adapters/http/swagger"
	"github.com/okian/fightlog/internal/adapters/output/ndjson"
	"github.com/okian/fightlog/internal/adapters/repository"
	"github.com/okian/fightlog/internal/adapters/repository/sqlite"
	service "github.com/okian/fightlog/internal/app"
	"github.com/okian/fightlog/internal/config"
	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/internal/domain/spells"
	"github.com/okian/fightlog/internal/domain/tracker"
	"github.com/okian/fightlog/pkg/logger"
	"github.com/okian/fightlog/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Error(ctx, "failed to load config", logger.Error(err))
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		os.Exit(1)
	}
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}

	if cfg.RaidTemplatesPath != "" {
		stopWatch, err := loadTemplates(ctx, cfg, svc, log)
		if err != nil {
			log.Error(ctx, "failed to load raid templates", logger.Error(err))
		}
		if stopWatch != nil {
			defer stopWatch()
		}
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, cfg.MaxListLimit),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// newService wires the store, the sink and the engine settings of cfg.
func newService(cfg *config.Config, log logger.Logger) (*service.Service, error) {
	engineOpts := []tracker.Option{
		tracker.WithGroupTimeout(cfg.GroupTimeout()),
		tracker.WithRaidTimeout(cfg.RaidTimeout()),
		tracker.WithPendingWindow(cfg.PendingWindow()),
		tracker.WithSweepInterval(cfg.SweepInterval()),
		tracker.WithBuffRetention(cfg.BuffRetention()),
	}
	if cfg.SpellsPath != "" {
		catalog, err := spells.LoadFile(cfg.SpellsPath)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, tracker.WithSpellLookup(catalog))
	}

	var store repository.Store
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		store = repository.NewMemoryStore(repository.WithLimit(cfg.MemoryStoreLimit))
	}

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithStore(store),
		service.WithEngineOptions(engineOpts...),
	}
	if cfg.OutputPath != "" {
		sink, err := ndjson.New(cfg.OutputPath, ndjson.WithMaxSize(cfg.OutputMaxBytes))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		opts = append(opts, service.WithSink(sink))
	}
	return service.New(opts...), nil
}

// loadTemplates registers the raid templates of cfg and, when asked, keeps
// them in sync with the file. The returned func stops the watch.
func loadTemplates(ctx context.Context, cfg *config.Config, svc *service.Service, log logger.Logger) (func(), error) {
	loader, err := config.NewTemplateLoader(cfg.RaidTemplatesPath, config.WithTemplateLogger(log.Named("templates")))
	if err != nil {
		return nil, err
	}
	// Invalid templates are logged by the service and skipped.
	_ = svc.SetRaidTemplates(ctx, loader.Templates())
	if !cfg.WatchTemplates {
		return nil, nil
	}
	loader.OnChange(func(ts []encounter.RaidTemplate) {
		_ = svc.SetRaidTemplates(ctx, ts)
	})
	stop, err := loader.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch raid templates: %w", err)
	}
	return stop, nil
}

func newMux(ctx context.Context, svc *service.Service, maxLimit int) *http.ServeMux {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, maxLimit).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater refreshes runtime gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		metrics.RecordSystemGCPauseTime(float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond)
	}
}
