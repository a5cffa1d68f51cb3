package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oets-school/oets-api/internal/models"
)

// ReportRepository handles persistence of export job metadata.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create persists a queued report job.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	const query = `INSERT INTO report_jobs (id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message)
        VALUES (:id, :type, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID returns a report job by identifier.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	const query = `SELECT id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message FROM report_jobs WHERE id = $1`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus transitions a job's lifecycle state and progress.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, progress int) error {
	const query = `UPDATE report_jobs SET status = $2, progress = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, progress); err != nil {
		return fmt.Errorf("update report job status: %w", err)
	}
	return nil
}

// MarkFinished records a successful export and its signed result URL.
func (r *ReportRepository) MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, progress = 100, result_url = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFinished, resultURL, finishedAt); err != nil {
		return fmt.Errorf("mark report job finished: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure.
func (r *ReportRepository) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFailed, message, finishedAt); err != nil {
		return fmt.Errorf("mark report job failed: %w", err)
	}
	return nil
}
