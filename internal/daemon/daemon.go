// Package daemon wires the streakd runtime: configuration, storage, the
// classifier, the streak engine, and the HTTP API, with graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streakforge/streakd/internal/api"
	"github.com/streakforge/streakd/internal/app/streak"
	"github.com/streakforge/streakd/internal/config"
	"github.com/streakforge/streakd/internal/domain"
	"github.com/streakforge/streakd/internal/health"
	"github.com/streakforge/streakd/internal/infra/classifier"
	"github.com/streakforge/streakd/internal/infra/sqlite"
	"github.com/streakforge/streakd/internal/infra/store"
)

// Daemon is the core streakd runtime. It wires together all services.
type Daemon struct {
	Cfg        *config.Provider
	DB         *sqlite.DB
	Store      *store.Store
	Classifier *classifier.Classifier
	Service    *streak.Service
	Health     *health.Checker
	Server     *api.Server

	cancel context.CancelFunc
}

// New loads configuration and assembles a Daemon.
func New() (*Daemon, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithProvider(cfg)
}

// NewWithProvider assembles a Daemon over an already-loaded configuration.
// Malformed tier or activity-type subtrees abort startup here rather than
// failing requests later.
func NewWithProvider(cfg *config.Provider) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	db, err := sqlite.Open(config.Home())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	st, err := store.New(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open record store: %w", err)
	}

	d := &Daemon{Cfg: cfg, DB: db, Store: st}

	// The classifier is only required when some activity type delegates to
	// it; a missing model is a warning at startup and a per-action
	// rejection at runtime, never a silent accept.
	var classifierCheck func() bool
	if aiEnabled(cfg) {
		clf := classifier.New()
		version := cfg.String("model_versions.help_post_classifier", "1.0.0")
		if err := clf.LoadFromStore(db, version); err != nil {
			if errors.Is(err, domain.ErrModelNotFound) {
				log.Printf("[daemon] WARNING: classifier model v%s not found, run `streakd train` (AI-validated actions will be rejected)", version)
			} else {
				db.Close()
				return nil, fmt.Errorf("load classifier model: %w", err)
			}
		} else {
			log.Printf("[daemon] classifier model v%s loaded", version)
		}
		d.Classifier = clf
		classifierCheck = clf.Ready
		d.Service = streak.NewService(cfg, st, classifier.NewGuard(clf, 1024))
	} else {
		d.Service = streak.NewService(cfg, st, nil)
	}

	d.Health = health.NewChecker(db, config.Home(), classifierCheck)

	srv := api.NewServer(d.Service, cfg, d.Health)
	if cfg.Bool("telemetry.prometheus", true) {
		srv.EnableMetrics()
	}
	d.Server = srv

	return d, nil
}

// aiEnabled reports whether any configured activity type delegates to the
// content classifier.
func aiEnabled(cfg *config.Provider) bool {
	for _, name := range cfg.ActivityTypeNames() {
		tc, ok, err := cfg.ActivityType(name)
		if err == nil && ok && tc.Enabled && tc.Validators.AIValidationEnabled {
			return true
		}
	}
	return false
}

// Serve runs the HTTP server and the health loop until ctx is cancelled or
// a termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	addr := fmt.Sprintf("%s:%d",
		d.Cfg.String("api.host", "127.0.0.1"),
		d.Cfg.Int("api.port", 8420))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Health.Run(ctx)
		return nil
	})

	g.Go(func() error {
		log.Printf("[daemon] streakd listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-sigCh:
			log.Printf("[daemon] shutdown signal received")
		case <-ctx.Done():
		}
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		return httpServer.Shutdown(shutCtx)
	})

	return g.Wait()
}

// Close releases daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
