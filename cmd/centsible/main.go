// Package main is the entry point for the centsible server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"

	"github.com/aloglu/centsible/internal/alert"
	"github.com/aloglu/centsible/internal/browser"
	"github.com/aloglu/centsible/internal/config"
	"github.com/aloglu/centsible/internal/diag"
	"github.com/aloglu/centsible/internal/extract"
	"github.com/aloglu/centsible/internal/fetch"
	"github.com/aloglu/centsible/internal/fx"
	"github.com/aloglu/centsible/internal/http/handlers"
	"github.com/aloglu/centsible/internal/logging"
	"github.com/aloglu/centsible/internal/models"
	"github.com/aloglu/centsible/internal/notify"
	"github.com/aloglu/centsible/internal/scheduler"
	"github.com/aloglu/centsible/internal/settings"
	"github.com/aloglu/centsible/internal/store"
	"github.com/aloglu/centsible/internal/tracker"
	"github.com/aloglu/centsible/internal/urlguard"
	"github.com/aloglu/centsible/internal/version"
)

func main() {
	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting centsible",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to open state store", "error", err)
		os.Exit(1)
	}

	svc, err := settings.New(st, logger)
	if err != nil {
		logger.Error("failed to load settings", "error", err)
		os.Exit(1)
	}

	fxTable := fx.New(cfg.FXURL, cfg.RequestTimeout, logger)
	guard := urlguard.New(cfg.AllowedHosts)

	tr, err := tracker.New(st, guard, fxTable, logger)
	if err != nil {
		logger.Error("failed to load tracked items", "error", err)
		os.Exit(1)
	}
	logger.Info("state loaded", "items", tr.Count(), "lists", len(svc.Lists()))

	// Best-effort initial FX refresh. The hourly job retries; until then
	// USD conversion falls back to missing rates.
	fxCtx, fxCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := fxTable.Refresh(fxCtx); err != nil {
		logger.Warn("initial FX refresh failed", "error", err)
	} else {
		tr.RefreshUSD()
	}
	fxCancel()

	pool := browser.NewPool(cfg, logger)
	fetcher := fetch.NewClient(
		cfg.FetchMode,
		fetch.NewStatic(cfg.RequestTimeout, logger),
		fetch.NewBrowser(pool, logger),
		logger,
	)
	extractor := extract.New(logger)

	diagLog := diag.NewLog(diag.DefaultCapacity)
	var recs []models.CheckRecord
	if err := st.Load(store.DiagnosticsFile, &recs); err == nil {
		diagLog.Seed(recs)
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.Warn("failed to load diagnostics history", "error", err)
	}

	notifier := notify.New(svc, cfg.WebhookProxyBase, cfg.DesktopNotify, logger)
	engine := alert.NewEngine(logger)

	deps := scheduler.Deps{
		Config:    cfg,
		Tracker:   tr,
		Guard:     guard,
		Fetcher:   fetcher,
		Extractor: extractor,
		Alerts:    engine,
		Notifier:  notifier,
		Rules:     svc,
		Diag:      diagLog,
		Store:     st,
		FX:        fxTable,
	}
	if cfg.SnapshotEnabled {
		snaps, err := store.NewSnapshots(cfg, st, logger)
		if err != nil {
			logger.Warn("S3 snapshots disabled", "error", err)
		} else {
			deps.Snapshots = snaps
		}
	}

	sched := scheduler.New(deps, logger)
	sched.Start(context.Background())

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Bodies are small JSON edits; 1 MiB is already generous.
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	router.Use(httprate.LimitByIP(100, time.Minute))

	// Bound in-flight requests so a misbehaving UI poll cannot pile up.
	router.Use(middleware.Throttle(100))

	humaConfig := huma.DefaultConfig("Centsible API", v.Version)
	humaConfig.Info.Description = "Price and availability tracker for e-commerce product pages."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}

	api := humachi.New(router, humaConfig)
	handlers.Register(api, handlers.New(tr, svc, sched, diagLog, fxTable))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL, "sweep_interval", cfg.SweepInterval.String())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	// The scheduler lets an in-flight item finish before returning; the
	// browser then gets its grace close and the state file a final write.
	sched.Stop()
	pool.Close()
	if err := tr.SaveState(); err != nil {
		logger.Error("final state save failed", "error", err)
	}

	logger.Info("server stopped")
}
