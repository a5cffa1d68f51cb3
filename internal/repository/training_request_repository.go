package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oets-school/oets-api/internal/models"
)

// TrainingRequestRepository handles persistence of training inquiries.
type TrainingRequestRepository struct {
	db *sqlx.DB
}

// NewTrainingRequestRepository constructs the repository.
func NewTrainingRequestRepository(db *sqlx.DB) *TrainingRequestRepository {
	return &TrainingRequestRepository{db: db}
}

// List returns training requests, optionally filtered by status, newest first.
func (r *TrainingRequestRepository) List(ctx context.Context, status models.TrainingRequestStatus, page, pageSize int) ([]models.TrainingRequest, int, error) {
	base := `FROM training_requests`
	var conditions []string
	var args []interface{}

	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT id, user_id, request_type, organization_name, needs_description, status, requested_at, processed_at %s ORDER BY requested_at DESC LIMIT %d OFFSET %d`, base+clause, pageSize, offset)
	var requests []models.TrainingRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list training requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count training requests: %w", err)
	}
	return requests, total, nil
}

// FindByID returns a training request by identifier.
func (r *TrainingRequestRepository) FindByID(ctx context.Context, id string) (*models.TrainingRequest, error) {
	const query = `SELECT id, user_id, request_type, organization_name, needs_description, status, requested_at, processed_at FROM training_requests WHERE id = $1`
	var request models.TrainingRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// Create persists a new training request.
func (r *TrainingRequestRepository) Create(ctx context.Context, request *models.TrainingRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = models.TrainingRequestPending
	}
	const query = `INSERT INTO training_requests (id, user_id, request_type, organization_name, needs_description, status, requested_at, processed_at)
        VALUES (:id, :user_id, :request_type, :organization_name, :needs_description, :status, :requested_at, :processed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create training request: %w", err)
	}
	return nil
}

// UpdateStatus records the admin verdict on a pending request. The status
// predicate guards against concurrent updates.
func (r *TrainingRequestRepository) UpdateStatus(ctx context.Context, id string, status models.TrainingRequestStatus, processedAt time.Time) (bool, error) {
	const query = `UPDATE training_requests SET status = $2, processed_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, status, processedAt, models.TrainingRequestPending)
	if err != nil {
		return false, fmt.Errorf("update training request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update training request status: %w", err)
	}
	return affected == 1, nil
}
