package main

import (
	"context"
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
	"github.com/spf13/cobra"

	"github.com/cellarlog/cellarlog/internal/config"
	"github.com/cellarlog/cellarlog/internal/constants"
	"github.com/cellarlog/cellarlog/internal/database"
	"github.com/cellarlog/cellarlog/internal/http/handlers"
	"github.com/cellarlog/cellarlog/internal/http/mw"
	"github.com/cellarlog/cellarlog/internal/logging"
	"github.com/cellarlog/cellarlog/internal/repository"
	"github.com/cellarlog/cellarlog/internal/service"
	"github.com/cellarlog/cellarlog/internal/shutdown"
	"github.com/cellarlog/cellarlog/internal/version"
	"github.com/cellarlog/cellarlog/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cellarlog API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting cellarlog",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	schemaVersion, err := database.CurrentSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else {
		logger.Info("database schema ready", "schema_version", schemaVersion)
	}

	repos := repository.NewRepositories(db)

	// Claims left behind by a previous run would otherwise block their
	// items until the janitor's first pass
	released, err := repos.Inbox.ReleaseStaleClaims(context.Background(), constants.StaleRunAge)
	if err != nil {
		logger.Warn("failed to release stale inbox claims", "error", err)
	} else if released > 0 {
		logger.Info("released stale inbox claims", "count", released)
	}

	services, err := service.NewServices(cfg, db, repos, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	// Activate the configured license on startup so a fresh install
	// starts at the right tier without an API call
	if cfg.LicenseKey != "" {
		if _, err := services.Entitlement.ActivateLicense(context.Background(), cfg.LicenseKey); err != nil {
			logger.Warn("configured license key did not validate, starting on free tier", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var conversionWorker *worker.Worker
	if cfg.WorkerEnabled {
		conversionWorker = worker.New(
			repos.Inbox,
			services.Conversion,
			worker.Config{
				PollInterval: cfg.WorkerPollInterval,
				Concurrency:  cfg.WorkerConcurrency,
			},
			logger,
		)
		conversionWorker.Start(ctx)
	}

	services.Backup.StartScheduler(ctx)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)

	var logFiltersLoader *mw.LogFiltersLoader
	if cfg.LogFilterPath != "" {
		logFiltersLoader = mw.NewLogFiltersLoader(mw.LogFiltersConfig{
			Path:   cfg.LogFilterPath,
			Logger: logger,
		})
		logFiltersLoader.Start(ctx)
	}

	// Idle monitor so a forgotten serve exits on its own. Probes don't
	// count as activity, and an in-flight conversion blocks shutdown.
	var idleMonitor *shutdown.IdleMonitor
	if cfg.IdleTimeout > 0 {
		idleMonitor = shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
			Timeout:      cfg.IdleTimeout,
			Logger:       logger,
			ExcludePaths: []string{"/healthz", "/readyz"},
			BackgroundWorkCheck: func() bool {
				return conversionWorker != nil && conversionWorker.HasActiveWork()
			},
		})
		router.Use(idleMonitor.Middleware)
		idleMonitor.Start()
	}

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:  constants.DefaultRequestTimeout,
		Extended: constants.MaintenanceRequestTimeout,
		// Maintenance tasks and large exports may run past the default
		ExtendedPatterns: []string{"/maintenance", "/export"},
	}))
	router.Use(mw.APIVersion())

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "X-API-Version"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Use(middleware.RequestSize(constants.MaxRequestBodySize))
	router.Use(httprate.LimitByIP(constants.GlobalIPRateLimitPerMinute, time.Minute))

	humaConfig := huma.DefaultConfig("cellarlog API", version.Get().Short())
	humaConfig.Info.Description = "Local-first wine tasting notes: capture raw text, convert it into structured 100-point notes, and keep your palate calibrated."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	if cfg.AuthRequired() {
		humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
			"bearerAuth": {
				Type:        "http",
				Scheme:      "bearer",
				Description: "API key authentication. Include the key in the Authorization header.",
			},
		}
	}

	api := humachi.New(router, humaConfig)

	// Probes are hidden from the docs
	hiddenConfig := huma.DefaultConfig("cellarlog API", version.Get().Short())
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	// Routes registered inside groups share the main API's docs config
	// but must not re-register the docs paths
	protectedConfig := huma.DefaultConfig("cellarlog API", version.Get().Short())
	protectedConfig.Info.Description = humaConfig.Info.Description
	protectedConfig.Servers = humaConfig.Servers
	protectedConfig.DocsPath = ""
	protectedConfig.OpenAPIPath = ""
	protectedConfig.SchemasPath = ""

	huma.Get(api, "/api/v1/health", handlers.HealthCheck)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	readyzHandler := handlers.NewReadyzHandler(db)
	huma.Get(hiddenAPI, "/readyz", readyzHandler.Readyz)

	// Core routes: notes, inbox, search, admin
	router.Group(func(r chi.Router) {
		r.Use(mw.APIKey(cfg.APIKeyHash))

		coreAPI := humachi.New(r, protectedConfig)

		noteHandler := handlers.NewNoteHandler(services.Note)
		huma.Post(coreAPI, "/api/v1/notes", noteHandler.CreateNote)
		huma.Get(coreAPI, "/api/v1/notes", noteHandler.ListNotes)
		huma.Get(coreAPI, "/api/v1/notes/{id}", noteHandler.GetNote)
		huma.Put(coreAPI, "/api/v1/notes/{id}", noteHandler.UpdateDraft)
		huma.Delete(coreAPI, "/api/v1/notes/{id}", noteHandler.DeleteNote)
		huma.Post(coreAPI, "/api/v1/notes/{id}/publish", noteHandler.Publish)
		huma.Post(coreAPI, "/api/v1/notes/{id}/revise", noteHandler.Revise)
		huma.Post(coreAPI, "/api/v1/notes/{id}/archive", noteHandler.Archive)
		huma.Get(coreAPI, "/api/v1/notes/{id}/revisions", noteHandler.ListRevisions)

		inboxHandler := handlers.NewInboxHandler(services.Inbox)
		huma.Post(coreAPI, "/api/v1/inbox", inboxHandler.Capture)
		huma.Get(coreAPI, "/api/v1/inbox", inboxHandler.ListItems)
		huma.Get(coreAPI, "/api/v1/inbox/stats", inboxHandler.Stats)
		huma.Get(coreAPI, "/api/v1/inbox/{id}", inboxHandler.GetItem)
		huma.Delete(coreAPI, "/api/v1/inbox/{id}", inboxHandler.DeleteItem)
		huma.Get(coreAPI, "/api/v1/inbox/{id}/runs", inboxHandler.ListRuns)

		searchHandler := handlers.NewSearchHandler(services.Search)
		huma.Get(coreAPI, "/api/v1/search", searchHandler.Search)
		huma.Get(coreAPI, "/api/v1/search/filters", searchHandler.FilterOptions)

		adminHandler := handlers.NewAdminHandler(services.Admin, services.Entitlement)
		huma.Get(coreAPI, "/api/v1/admin/status", adminHandler.GetStatus)
		huma.Get(coreAPI, "/api/v1/admin/schema", adminHandler.GetSchemaStatus)
		huma.Get(coreAPI, "/api/v1/admin/settings", adminHandler.GetSettings)
		huma.Get(coreAPI, "/api/v1/admin/maintenance", adminHandler.MaintenanceHistory)
		huma.Post(coreAPI, "/api/v1/admin/maintenance/reindex", adminHandler.TriggerReindex)
		huma.Post(coreAPI, "/api/v1/admin/maintenance/backup", adminHandler.TriggerBackup)
		huma.Get(coreAPI, "/api/v1/admin/backups", adminHandler.ListBackups)
		huma.Post(coreAPI, "/api/v1/admin/license", adminHandler.ActivateLicense)
		huma.Delete(coreAPI, "/api/v1/admin/license", adminHandler.DeactivateLicense)
	})

	// Calibration routes (requires the calibration feature)
	router.Group(func(r chi.Router) {
		r.Use(mw.APIKey(cfg.APIKeyHash))
		r.Use(mw.RequireFeature(services.Entitlement, constants.FeatureCalibration))

		calibrationAPI := humachi.New(r, protectedConfig)
		calibrationHandler := handlers.NewCalibrationHandler(services.Calibration)
		huma.Get(calibrationAPI, "/api/v1/calibration", calibrationHandler.ListNotes)
		huma.Put(calibrationAPI, "/api/v1/calibration", calibrationHandler.SetNote)
		huma.Get(calibrationAPI, "/api/v1/calibration/reference", calibrationHandler.ScoreReference)
		huma.Get(calibrationAPI, "/api/v1/calibration/{id}", calibrationHandler.GetNote)
		huma.Delete(calibrationAPI, "/api/v1/calibration/{id}", calibrationHandler.DeleteNote)
	})

	// Insights routes (requires the insights feature)
	router.Group(func(r chi.Router) {
		r.Use(mw.APIKey(cfg.APIKeyHash))
		r.Use(mw.RequireFeature(services.Entitlement, constants.FeatureInsights))

		insightsAPI := humachi.New(r, protectedConfig)
		insightsHandler := handlers.NewInsightsHandler(services.Calibration)
		huma.Get(insightsAPI, "/api/v1/insights/stats", insightsHandler.PersonalStats)
		huma.Get(insightsAPI, "/api/v1/insights/consistency", insightsHandler.Consistency)
		huma.Get(insightsAPI, "/api/v1/insights/trends", insightsHandler.Trends)
	})

	// Export downloads are raw handlers for format-aware responses
	router.Group(func(r chi.Router) {
		r.Use(mw.APIKey(cfg.APIKeyHash))
		r.Use(mw.RequireFeature(services.Entitlement, constants.FeatureExport))

		exportHandler := handlers.NewExportHandler(services.Export)
		r.Get("/api/v1/export/notes", exportHandler.ExportNotes)
		r.Get("/api/v1/export/calibration", exportHandler.ExportCalibration)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-sigChan:
			logger.Info("shutting down server")
		case <-idleShutdown(idleMonitor):
			logger.Info("idle timeout reached, shutting down server")
		}

		cancel()
		if conversionWorker != nil {
			conversionWorker.Stop()
		}
		services.Backup.StopScheduler()
		if logFiltersLoader != nil {
			logFiltersLoader.Stop()
		}
		if idleMonitor != nil {
			idleMonitor.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	mode := "open"
	if cfg.AuthRequired() {
		mode = "api-key"
	}
	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL, "auth", mode)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// idleShutdown returns the monitor's shutdown channel, or one that
// never fires when idle monitoring is disabled.
func idleShutdown(m *shutdown.IdleMonitor) <-chan struct{} {
	if m == nil {
		return make(chan struct{})
	}
	return m.ShutdownChan()
}
