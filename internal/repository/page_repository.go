package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/oets-school/oets-api/internal/models"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
)

// ErrDuplicateSlug signals a page slug collision.
var ErrDuplicateSlug = appErrors.Clone(appErrors.ErrConflict, "a page with this slug already exists")

// PageRepository handles persistence of CMS pages.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository constructs the repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// List returns pages; when visibleOnly is set, hidden pages are excluded.
func (r *PageRepository) List(ctx context.Context, visibleOnly bool) ([]models.Page, error) {
	query := `SELECT id, title, slug, html_content, visible, created_at, updated_at FROM pages`
	if visibleOnly {
		query += ` WHERE visible = TRUE`
	}
	query += ` ORDER BY title`
	var pages []models.Page
	if err := r.db.SelectContext(ctx, &pages, query); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

// FindBySlug returns a page by its slug.
func (r *PageRepository) FindBySlug(ctx context.Context, slug string) (*models.Page, error) {
	const query = `SELECT id, title, slug, html_content, visible, created_at, updated_at FROM pages WHERE slug = $1`
	var page models.Page
	if err := r.db.GetContext(ctx, &page, query, slug); err != nil {
		return nil, err
	}
	return &page, nil
}

// FindByID returns a page by identifier.
func (r *PageRepository) FindByID(ctx context.Context, id string) (*models.Page, error) {
	const query = `SELECT id, title, slug, html_content, visible, created_at, updated_at FROM pages WHERE id = $1`
	var page models.Page
	if err := r.db.GetContext(ctx, &page, query, id); err != nil {
		return nil, err
	}
	return &page, nil
}

// Create persists a new page.
func (r *PageRepository) Create(ctx context.Context, page *models.Page) error {
	if page.ID == "" {
		page.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now
	const query = `INSERT INTO pages (id, title, slug, html_content, visible, created_at, updated_at)
        VALUES (:id, :title, :slug, :html_content, :visible, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, page); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

// Update updates mutable fields of a page.
func (r *PageRepository) Update(ctx context.Context, page *models.Page) error {
	page.UpdatedAt = time.Now().UTC()
	const query = `UPDATE pages SET title = :title, slug = :slug, html_content = :html_content, visible = :visible, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, page); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("update page: %w", err)
	}
	return nil
}

// Delete removes a page.
func (r *PageRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM pages WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
