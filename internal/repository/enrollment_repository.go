package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/oets-school/oets-api/internal/models"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
)

// ErrDuplicateEnrollment maps the partial unique index violation on
// (student_id, course_id) to the domain conflict error.
var ErrDuplicateEnrollment = appErrors.Clone(appErrors.ErrConflict, "an active enrollment for this course already exists")

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN users u ON u.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("c.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "u.full_name",
		"course_title": "c.title",
		"status":       "e.status",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "enrolled_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.motivation, e.status, e.enrolled_at, e.decided_at, e.decided_by,
        u.full_name AS student_name, u.email AS student_email, c.title AS course_title
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, motivation, status, enrolled_at, decided_at, decided_by FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.motivation, e.status, e.enrolled_at, e.decided_at, e.decided_by,
        u.full_name AS student_name, u.email AS student_email, c.title AS course_title
        FROM enrollments e
        LEFT JOIN users u ON u.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new enrollment record. The partial unique index on
// active (student, course) pairs surfaces duplicates as ErrDuplicateEnrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, motivation, status, enrolled_at, decided_at, decided_by)
        VALUES (:id, :student_id, :course_id, :motivation, :status, :enrolled_at, :decided_at, :decided_by)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateEnrollment
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateDecision records the reviewer's verdict on a pending enrollment.
// The status predicate guards against concurrent decisions.
func (r *EnrollmentRepository) UpdateDecision(ctx context.Context, id string, status models.EnrollmentStatus, decidedBy string, decidedAt time.Time) (bool, error) {
	const query = `UPDATE enrollments SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, status, decidedBy, decidedAt, models.EnrollmentStatusPending)
	if err != nil {
		return false, fmt.Errorf("update enrollment decision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update enrollment decision: %w", err)
	}
	return affected == 1, nil
}

// Delete removes an enrollment. Document rows cascade at the database layer.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enrollments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByCourse returns enrollments for a course, optionally restricted by status.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	query := `SELECT e.id, e.student_id, e.course_id, e.motivation, e.status, e.enrolled_at, e.decided_at, e.decided_by,
        u.full_name AS student_name, u.email AS student_email, c.title AS course_title
        FROM enrollments e
        LEFT JOIN users u ON u.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.course_id = $1`
	args := []interface{}{courseID}
	if status != "" {
		query += fmt.Sprintf(" AND e.status = $%d", len(args)+1)
		args = append(args, status)
	}
	query += " ORDER BY e.enrolled_at"

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}
