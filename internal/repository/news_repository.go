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

// NewsRepository handles persistence of announcements.
type NewsRepository struct {
	db *sqlx.DB
}

// NewNewsRepository constructs the repository.
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// List returns published news ordered by recency, with total count.
func (r *NewsRepository) List(ctx context.Context, page, pageSize int) ([]models.News, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT id, title, content, author_id, published_at, updated_at FROM news ORDER BY published_at DESC LIMIT %d OFFSET %d`, pageSize, offset)
	var items []models.News
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, 0, fmt.Errorf("list news: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM news`); err != nil {
		return nil, 0, fmt.Errorf("count news: %w", err)
	}
	return items, total, nil
}

// FindByID returns a news item by identifier.
func (r *NewsRepository) FindByID(ctx context.Context, id string) (*models.News, error) {
	const query = `SELECT id, title, content, author_id, published_at, updated_at FROM news WHERE id = $1`
	var item models.News
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create persists a news item.
func (r *NewsRepository) Create(ctx context.Context, item *models.News) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.PublishedAt.IsZero() {
		item.PublishedAt = now
	}
	item.UpdatedAt = now
	const query = `INSERT INTO news (id, title, content, author_id, published_at, updated_at)
        VALUES (:id, :title, :content, :author_id, :published_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create news: %w", err)
	}
	return nil
}

// Update updates mutable fields of a news item.
func (r *NewsRepository) Update(ctx context.Context, item *models.News) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE news SET title = :title, content = :content, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("update news: %w", err)
	}
	return nil
}

// Delete removes a news item.
func (r *NewsRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM news WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete news: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete news: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
