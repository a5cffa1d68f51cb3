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

// ErrDuplicateDepartment signals a name collision.
var ErrDuplicateDepartment = appErrors.Clone(appErrors.ErrConflict, "a department with this name already exists")

// DepartmentRepository handles persistence of departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns all departments ordered by name.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	const query = `SELECT id, name, language, description, created_at, updated_at FROM departments ORDER BY name`
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindByID returns a department by identifier.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, name, language, description, created_at, updated_at FROM departments WHERE id = $1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// Create inserts a new department.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if department.CreatedAt.IsZero() {
		department.CreatedAt = now
	}
	department.UpdatedAt = now

	const query = `INSERT INTO departments (id, name, language, description, created_at, updated_at)
        VALUES (:id, :name, :language, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateDepartment
		}
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update updates mutable fields of a department.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET name = :name, language = :language, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateDepartment
		}
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

// Delete removes a department. Courses referencing it block deletion at the
// database layer; that surfaces as a conflict.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM departments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return appErrors.Clone(appErrors.ErrConflict, "department still has courses")
		}
		return fmt.Errorf("delete department: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
