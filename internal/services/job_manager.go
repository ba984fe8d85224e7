package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/database"
	"github.com/temcen/cellar/pkg/models"
)

// JobManager tracks catalog import jobs in the key-value store. Without a
// store jobs still get an id but their progress cannot be queried.
type JobManager struct {
	kv     database.KeyValueStore
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

type JobProgress struct {
	JobID          uuid.UUID `json:"job_id"`
	JobType        string    `json:"job_type"`
	Status         string    `json:"status"`
	Progress       int       `json:"progress"`
	TotalItems     int       `json:"total_items"`
	ProcessedItems int       `json:"processed_items"`
	FailedItems    int       `json:"failed_items"`
	EstimatedTime  *int      `json:"estimated_time,omitempty"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Rough per-record cost used for the initial estimate.
const estimatedMillisPerRecord = 20

func NewJobManager(kv database.KeyValueStore, ttl time.Duration, logger *logrus.Logger) *JobManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JobManager{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (jm *JobManager) Enabled() bool {
	return jm.kv != nil
}

func jobKey(jobID uuid.UUID) string {
	return fmt.Sprintf("cellar:job:%s", jobID.String())
}

func (jm *JobManager) CreateJob(ctx context.Context, totalItems int, jobType string) (*JobProgress, error) {
	now := jm.now()
	estimatedSeconds := (totalItems*estimatedMillisPerRecord + 999) / 1000

	job := &JobProgress{
		JobID:         uuid.New(),
		JobType:       jobType,
		Status:        JobStatusQueued,
		TotalItems:    totalItems,
		EstimatedTime: &estimatedSeconds,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if jm.Enabled() {
		if err := jm.store(ctx, job); err != nil {
			return nil, err
		}
	} else {
		jm.logger.WithField("job_id", job.JobID).Warn("Job tracking disabled, progress will not be recorded")
	}

	jm.logger.WithFields(logrus.Fields{
		"job_id":      job.JobID,
		"total_items": totalItems,
		"job_type":    jobType,
	}).Info("Job created")

	return job, nil
}

func (jm *JobManager) GetJob(ctx context.Context, jobID uuid.UUID) (*JobProgress, error) {
	if !jm.Enabled() {
		return nil, models.ErrJobNotFound
	}

	raw, err := jm.kv.Get(ctx, jobKey(jobID))
	if errors.Is(err, database.ErrKeyNotFound) {
		return nil, models.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	var job JobProgress
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// RecordProgress adds processed and failed records to the job. The job
// completes once every record is accounted for; it fails when none of them
// could be imported.
func (jm *JobManager) RecordProgress(ctx context.Context, jobID uuid.UUID, processed, failed int) error {
	if !jm.Enabled() {
		return nil
	}

	job, err := jm.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	job.ProcessedItems += processed
	job.FailedItems += failed
	job.UpdatedAt = jm.now()

	done := job.ProcessedItems + job.FailedItems
	if job.TotalItems > 0 {
		job.Progress = min(100, done*100/job.TotalItems)
	}

	switch {
	case done < job.TotalItems:
		job.Status = JobStatusProcessing
		if job.ProcessedItems > 0 {
			elapsed := job.UpdatedAt.Sub(job.CreatedAt).Seconds()
			remaining := int(elapsed / float64(done) * float64(job.TotalItems-done))
			job.EstimatedTime = &remaining
		}
	case job.ProcessedItems == 0 && job.FailedItems > 0:
		job.Status = JobStatusFailed
		job.EstimatedTime = nil
	default:
		job.Status = JobStatusCompleted
		job.EstimatedTime = nil
	}

	if err := jm.store(ctx, job); err != nil {
		return err
	}

	jm.logger.WithFields(logrus.Fields{
		"job_id":          jobID,
		"status":          job.Status,
		"progress":        job.Progress,
		"processed_items": job.ProcessedItems,
		"failed_items":    job.FailedItems,
	}).Debug("Job progress updated")

	return nil
}

func (jm *JobManager) FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string) error {
	if !jm.Enabled() {
		return nil
	}

	job, err := jm.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	job.Status = JobStatusFailed
	job.ErrorMessage = &errorMessage
	job.EstimatedTime = nil
	job.UpdatedAt = jm.now()

	return jm.store(ctx, job)
}

func (jm *JobManager) store(ctx context.Context, job *JobProgress) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := jm.kv.Set(ctx, jobKey(job.JobID), raw, jm.ttl); err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	return nil
}
