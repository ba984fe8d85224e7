package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/messaging"
	"github.com/temcen/cellar/pkg/models"
)

const catalogImportJobType = "catalog_import"

// CatalogBus carries catalog import batches. *messaging.MessageBus
// implements it.
type CatalogBus interface {
	PublishCatalogBatch(ctx context.Context, batch models.CatalogImportMessage) error
	ConsumeCatalogBatches(ctx context.Context, handler func(context.Context, models.CatalogImportMessage) error, onDeadLetter messaging.DeadLetterFunc) error
}

// CatalogImportPipeline turns raw catalog rows into wines. Batches are
// published on the bus and imported by the consumer started with Start;
// without a bus they are imported synchronously.
type CatalogImportPipeline struct {
	bus          CatalogBus
	catalog      *CatalogService
	preprocessor *DataPreprocessor
	jobs         *JobManager
	metrics      *MetricsCollector
	logger       *logrus.Logger
	batchSize    int
	wg           sync.WaitGroup
}

func NewCatalogImportPipeline(
	bus CatalogBus,
	catalog *CatalogService,
	preprocessor *DataPreprocessor,
	jobs *JobManager,
	metrics *MetricsCollector,
	batchSize int,
	logger *logrus.Logger,
) *CatalogImportPipeline {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &CatalogImportPipeline{
		bus:          bus,
		catalog:      catalog,
		preprocessor: preprocessor,
		jobs:         jobs,
		metrics:      metrics,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// Start runs the bus consumer until ctx is cancelled.
func (p *CatalogImportPipeline) Start(ctx context.Context) {
	if p.bus == nil {
		p.logger.Info("Catalog import bus disabled, batches are imported synchronously")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.bus.ConsumeCatalogBatches(ctx, p.HandleMessage, p.HandleDeadLetter); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.WithError(err).Error("Catalog import consumer stopped")
		}
	}()

	p.logger.Info("Catalog import pipeline started")
}

// Wait blocks until the consumer started by Start has returned.
func (p *CatalogImportPipeline) Wait() {
	p.wg.Wait()
}

// SubmitBatch creates an import job for req and hands its records to the
// bus in chunks of batchSize.
func (p *CatalogImportPipeline) SubmitBatch(ctx context.Context, req models.CatalogBatchRequest) (*models.CatalogBatchResponse, error) {
	if req.Replace {
		if err := p.catalog.ReplaceCatalog(ctx); err != nil {
			return nil, err
		}
	}

	job, err := p.jobs.CreateJob(ctx, len(req.Records), catalogImportJobType)
	if err != nil {
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}

	resp := &models.CatalogBatchResponse{
		JobID:         job.JobID,
		Status:        JobStatusQueued,
		TotalItems:    len(req.Records),
		EstimatedTime: job.EstimatedTime,
	}

	if p.bus == nil {
		imported, failed, err := p.importRecords(ctx, req.Records)
		if err != nil {
			p.failJob(ctx, job.JobID, err)
			return nil, err
		}
		p.recordJobProgress(ctx, job.JobID, imported, failed)

		resp.Status = JobStatusCompleted
		if imported == 0 && failed > 0 {
			resp.Status = JobStatusFailed
		}
		resp.EstimatedTime = nil
		return resp, nil
	}

	for seq, start := 0, 0; start < len(req.Records); seq, start = seq+1, start+p.batchSize {
		end := min(start+p.batchSize, len(req.Records))
		msg := models.CatalogImportMessage{
			JobID:     job.JobID,
			Sequence:  seq,
			Records:   req.Records[start:end],
			Timestamp: time.Now().UTC(),
		}
		if err := p.bus.PublishCatalogBatch(ctx, msg); err != nil {
			p.failJob(ctx, job.JobID, err)
			return nil, fmt.Errorf("failed to publish catalog batch %d: %w", seq, err)
		}
	}

	p.logger.WithFields(logrus.Fields{
		"job_id":  job.JobID,
		"records": len(req.Records),
	}).Info("Catalog batch queued")

	return resp, nil
}

// HandleMessage imports one published batch. Unusable records count as
// failed; a store error is returned so the bus retries the batch.
func (p *CatalogImportPipeline) HandleMessage(ctx context.Context, msg models.CatalogImportMessage) error {
	imported, failed, err := p.importRecords(ctx, msg.Records)
	if err != nil {
		return err
	}
	p.recordJobProgress(ctx, msg.JobID, imported, failed)

	p.logger.WithFields(logrus.Fields{
		"job_id":   msg.JobID,
		"sequence": msg.Sequence,
		"imported": imported,
		"failed":   failed,
	}).Info("Catalog batch imported")
	return nil
}

// HandleDeadLetter fails the job of a batch the bus gave up on.
func (p *CatalogImportPipeline) HandleDeadLetter(ctx context.Context, msg models.CatalogImportMessage, cause error) {
	p.logger.WithError(cause).WithFields(logrus.Fields{
		"job_id":   msg.JobID,
		"sequence": msg.Sequence,
		"records":  len(msg.Records),
	}).Error("Catalog batch dead-lettered")
	p.failJob(ctx, msg.JobID, fmt.Errorf("batch %d: %w", msg.Sequence, cause))
}

func (p *CatalogImportPipeline) importRecords(ctx context.Context, records []models.RawWineRecord) (imported, failed int, err error) {
	wines := make([]models.Wine, 0, len(records))
	for i, rec := range records {
		wine, err := p.preprocessor.ProcessRecord(rec)
		if err != nil {
			failed++
			p.logger.WithError(err).WithField("record", i).Debug("Skipping catalog record")
			continue
		}
		wines = append(wines, wine)
	}

	stored, err := p.catalog.ImportWines(ctx, wines)
	if err != nil {
		return 0, 0, err
	}

	if p.metrics != nil {
		p.metrics.RecordImportedRecords(len(stored), failed)
	}
	return len(stored), failed, nil
}

func (p *CatalogImportPipeline) recordJobProgress(ctx context.Context, jobID uuid.UUID, imported, failed int) {
	if err := p.jobs.RecordProgress(ctx, jobID, imported, failed); err != nil {
		p.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to record import progress")
	}
}

func (p *CatalogImportPipeline) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	if err := p.jobs.FailJob(ctx, jobID, cause.Error()); err != nil {
		p.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to mark import job as failed")
	}
}
