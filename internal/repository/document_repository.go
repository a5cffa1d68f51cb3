package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oets-school/oets-api/internal/models"
)

// DocumentRepository handles persistence of enrollment documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindByID returns a document by identifier.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT id, enrollment_id, type, file_name, file_path, mime_type, size_bytes, uploaded_at FROM documents WHERE id = $1`
	var document models.Document
	if err := r.db.GetContext(ctx, &document, query, id); err != nil {
		return nil, err
	}
	return &document, nil
}

// ListByEnrollment returns documents attached to an enrollment.
func (r *DocumentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Document, error) {
	const query = `SELECT id, enrollment_id, type, file_name, file_path, mime_type, size_bytes, uploaded_at FROM documents WHERE enrollment_id = $1 ORDER BY uploaded_at`
	var documents []models.Document
	if err := r.db.SelectContext(ctx, &documents, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment documents: %w", err)
	}
	return documents, nil
}

// Create persists document metadata after the file has been stored.
func (r *DocumentRepository) Create(ctx context.Context, document *models.Document) error {
	if document.ID == "" {
		document.ID = uuid.NewString()
	}
	if document.UploadedAt.IsZero() {
		document.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, enrollment_id, type, file_name, file_path, mime_type, size_bytes, uploaded_at)
        VALUES (:id, :enrollment_id, :type, :file_name, :file_path, :mime_type, :size_bytes, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, document); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Delete removes a document row.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
