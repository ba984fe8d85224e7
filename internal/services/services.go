package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/config"
	"github.com/temcen/cellar/internal/database"
	"github.com/temcen/cellar/internal/messaging"
)

type Services struct {
	Metrics          *MetricsCollector
	Cache            *RecommendationCache
	Graph            *GraphService
	Catalog          *CatalogService
	Ratings          *RatingService
	Recommendations  *RecommendationService
	DataPreprocessor *DataPreprocessor
	JobManager       *JobManager
	MessageBus       *messaging.MessageBus
	CatalogImport    *CatalogImportPipeline
	Auth             *AuthService
	RateLimit        *RateLimitService
	Health           *HealthService
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database, reg prometheus.Registerer) (*Services, error) {
	metrics := NewMetricsCollector(reg)
	kv := db.KeyValue()

	cache := NewRecommendationCache(kv, cfg.Recommendation.Caching, metrics, logger)
	graph := NewGraphService(db.Neo4j, cfg.Neo4j, metrics, logger)
	catalog := NewCatalogService(db.Store, graph, cache, logger)
	ratings := NewRatingService(db.Store, cache, metrics, logger)
	recommendations := NewRecommendationService(db.Store, cache, metrics, logger)

	// Initialize catalog ingestion services
	var (
		messageBus *messaging.MessageBus
		bus        CatalogBus
	)
	if cfg.Kafka.Enabled {
		var err error
		messageBus, err = messaging.NewMessageBus(cfg, logger)
		if err != nil {
			return nil, err
		}
		bus = messageBus
	}

	dataPreprocessor := NewDataPreprocessor(logger)
	jobManager := NewJobManager(kv, cfg.Recommendation.Caching.JobTTL, logger)
	catalogImport := NewCatalogImportPipeline(bus, catalog, dataPreprocessor, jobManager, metrics, cfg.Kafka.BatchSize, logger)

	health := NewHealthService(metrics, logger)
	health.AddCritical("store", db.Store.Ping)
	if kv != nil {
		health.AddNonCritical("redis", kv.Ping)
	}
	if db.Neo4j != nil {
		health.AddNonCritical("neo4j", db.Neo4j.VerifyConnectivity)
	}
	if messageBus != nil {
		health.AddNonCritical("kafka", messageBus.Ping)
		health.AddMetricsSource("kafka", messageBus.GetMetrics)
	}

	return &Services{
		Metrics:          metrics,
		Cache:            cache,
		Graph:            graph,
		Catalog:          catalog,
		Ratings:          ratings,
		Recommendations:  recommendations,
		DataPreprocessor: dataPreprocessor,
		JobManager:       jobManager,
		MessageBus:       messageBus,
		CatalogImport:    catalogImport,
		Auth:             NewAuthService(cfg.Auth, kv, logger),
		RateLimit:        NewRateLimitService(cfg.Auth.RateLimit, kv, logger),
		Health:           health,
	}, nil
}

// Close releases the message bus.
func (s *Services) Close() error {
	if s.MessageBus != nil {
		return s.MessageBus.Close()
	}
	return nil
}
