package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oets-school/oets-api/internal/models"
)

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c
LEFT JOIN departments d ON d.id = c.department_id
LEFT JOIN users t ON t.id = c.teacher_id`
	var conditions []string
	var args []interface{}

	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("c.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Format != "" {
		conditions = append(conditions, fmt.Sprintf("c.format = $%d", len(args)+1))
		args = append(args, filter.Format)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.title) LIKE $%d OR LOWER(c.description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"title":      "c.title",
		"start_date": "c.start_date",
		"price":      "c.price",
		"created_at": "c.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "start_date"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "c.start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT c.id, c.department_id, c.teacher_id, c.title, c.description, c.start_date, c.duration_weeks, c.format, c.location, c.price, c.status, c.created_at, c.updated_at,
        d.name AS department_name, t.full_name AS teacher_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, department_id, teacher_id, title, description, start_date, duration_weeks, format, location, price, status, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindDetailByID returns a course with department and teacher info.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	const query = `SELECT c.id, c.department_id, c.teacher_id, c.title, c.description, c.start_date, c.duration_weeks, c.format, c.location, c.price, c.status, c.created_at, c.updated_at,
        d.name AS department_name, t.full_name AS teacher_name
        FROM courses c
        LEFT JOIN departments d ON d.id = c.department_id
        LEFT JOIN users t ON t.id = c.teacher_id
        WHERE c.id = $1`
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	if course.Status == "" {
		course.Status = models.CourseStatusPending
	}

	const query = `INSERT INTO courses (id, department_id, teacher_id, title, description, start_date, duration_weeks, format, location, price, status, created_at, updated_at)
        VALUES (:id, :department_id, :teacher_id, :title, :description, :start_date, :duration_weeks, :format, :location, :price, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update updates mutable fields of a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET department_id = :department_id, title = :title, description = :description, start_date = :start_date, duration_weeks = :duration_weeks, format = :format, location = :location, price = :price, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// UpdateStatus changes the course lifecycle status.
func (r *CourseRepository) UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error {
	const query = `UPDATE courses SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	return nil
}

// UpdateTeacher reassigns course ownership.
func (r *CourseRepository) UpdateTeacher(ctx context.Context, id, teacherID string) error {
	const query = `UPDATE courses SET teacher_id = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, teacherID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reassign course teacher: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reassign course teacher: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
