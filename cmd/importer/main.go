package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/temcen/cellar/internal/app"
	"github.com/temcen/cellar/internal/config"
	"github.com/temcen/cellar/internal/database"
	"github.com/temcen/cellar/internal/messaging"
	"github.com/temcen/cellar/internal/services"
	"github.com/temcen/cellar/pkg/models"
)

func main() {
	file := pflag.StringP("file", "f", "wine_data.csv", "catalog CSV file to import")
	replace := pflag.Bool("replace", true, "clear the catalog and all ratings before importing")
	publish := pflag.Bool("publish", false, "publish the batches to Kafka instead of importing directly")
	batchSize := pflag.Int("batch-size", 0, "records per published batch (defaults to kafka.batch_size)")
	timeout := pflag.Duration("timeout", 5*time.Minute, "overall import deadline")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := app.NewLogger(cfg)

	if err := run(cfg, logger, *file, *replace, *publish, *batchSize, *timeout); err != nil {
		logger.WithError(err).Fatal("Catalog import failed")
	}
}

func run(cfg *config.Config, logger *logrus.Logger, file string, replace, publish bool, batchSize int, timeout time.Duration) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := services.ReadCatalogCSV(f)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"file":    file,
		"records": len(records),
	}).Info("Read catalog file")

	db, err := database.New(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Only the publisher side of the bus; the server owns the consumer group.
	var bus services.CatalogBus
	if publish {
		publisher, err := messaging.NewPublisher(cfg, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		bus = publisher
	}
	if batchSize <= 0 {
		batchSize = cfg.Kafka.BatchSize
	}

	kv := db.KeyValue()
	metrics := services.NewMetricsCollector(prometheus.NewRegistry())
	cache := services.NewRecommendationCache(kv, cfg.Recommendation.Caching, metrics, logger)
	graph := services.NewGraphService(db.Neo4j, cfg.Neo4j, metrics, logger)
	catalog := services.NewCatalogService(db.Store, graph, cache, logger)
	jobs := services.NewJobManager(kv, cfg.Recommendation.Caching.JobTTL, logger)
	pipeline := services.NewCatalogImportPipeline(bus, catalog, services.NewDataPreprocessor(logger), jobs, metrics, batchSize, logger)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := pipeline.SubmitBatch(ctx, models.CatalogBatchRequest{Records: records, Replace: replace})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"job_id": resp.JobID,
		"status": resp.Status,
		"total":  resp.TotalItems,
	}).Info("Catalog import submitted")
	return nil
}
