package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/config"
	"github.com/temcen/cellar/internal/database"
	"github.com/temcen/cellar/internal/handlers"
	"github.com/temcen/cellar/internal/middleware"
	"github.com/temcen/cellar/internal/services"
	"github.com/temcen/cellar/internal/validation"
)

const systemMetricsInterval = 30 * time.Second

type App struct {
	config    *config.Config
	logger    *logrus.Logger
	db        *database.Database
	registry  *prometheus.Registry
	services  *services.Services
	handlers  *handlers.Handlers
	validator *validation.SchemaValidator
	router    *gin.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg)

	db, err := database.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app, err := NewWithDatabase(cfg, logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

// NewWithDatabase builds the application on already opened connections.
func NewWithDatabase(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*App, error) {
	app := &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := services.New(cfg, logger, db, app.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svc

	validator, err := validation.NewEmbeddedValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load request schemas: %w", err)
	}
	app.validator = validator

	app.handlers = handlers.New(logger, svc)
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Start prepares the catalog and launches the background workers: the
// catalog import consumer and the system metrics collector.
func (a *App) Start(ctx context.Context) error {
	if a.config.Database.SeedSampleData {
		if _, err := a.services.Catalog.SeedSampleData(ctx); err != nil {
			return err
		}
	}

	if err := a.services.Catalog.SyncGraph(ctx); err != nil {
		a.logger.WithError(err).Warn("Initial variety graph sync failed")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.services.CatalogImport.Start(runCtx)

	if a.config.Monitoring.Enabled {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.services.Health.CollectSystemMetrics(runCtx, systemMetricsInterval)
		}()
	}

	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.services.CatalogImport.Wait()
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Background workers did not stop before the shutdown deadline")
	}

	if err := a.services.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing message bus")
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

// NewLogger builds the logrus logger described by cfg.Logging.
func NewLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	h := a.handlers
	validate := middleware.NewValidationMiddleware(a.validator)

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger, a.services.Metrics))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(a.config.Security.CORS))
	router.Use(middleware.Compression(a.config.Monitoring.MetricsPath))

	router.GET("/health", h.Health.Check)

	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	}

	// Wine lookup and search
	router.GET("/wine/:id", h.Wine.GetSummary)
	router.GET("/get_wine/:id", h.Wine.GetDetail)
	router.GET("/search_wines_by_name", h.Wine.Search)

	// Ratings and preferences
	router.POST("/add_preference", validate.ValidateRating(), h.Rating.AddPreference)
	router.POST("/rate_wine", validate.ValidateRating(), h.Rating.RateWine)
	router.DELETE("/delete_rating/:id", h.Rating.DeleteRating)
	router.GET("/get_preferences", h.Rating.GetPreferences)
	router.GET("/get_rated_wines", h.Rating.GetRatedWines)

	router.GET("/get_recommendations", h.Recommendation.Get)

	api := router.Group("/api/v1")
	{
		api.POST("/auth/token", validate.ValidateAuthToken(), h.Auth.IssueToken)
		api.GET("/wines/:id/related", h.Wine.Related)

		admin := api.Group("/admin")
		admin.Use(middleware.Auth(a.services.Auth, a.logger))
		admin.Use(middleware.RateLimit(a.services.RateLimit, a.logger))
		{
			catalog := admin.Group("/catalog")
			catalog.POST("/sweetness", h.Catalog.NormalizeSweetness)
			catalog.POST("/batch", validate.ValidateCatalogBatch(), h.Catalog.SubmitBatch)
			catalog.GET("/jobs/:jobId", h.Catalog.GetJob)
		}
	}

	a.router = router
}
