package models

import "time"

// CourseFormat enumerates delivery formats.
type CourseFormat string

const (
	CourseFormatInPerson CourseFormat = "IN_PERSON"
	CourseFormatOnline   CourseFormat = "ONLINE"
)

// CourseStatus represents the catalog lifecycle of a course.
type CourseStatus string

const (
	CourseStatusOpen     CourseStatus = "OPEN"
	CourseStatusPending  CourseStatus = "PENDING"
	CourseStatusArchived CourseStatus = "ARCHIVED"
)

// Course represents an offered course. TeacherID is the owning teacher.
type Course struct {
	ID            string       `db:"id" json:"id"`
	DepartmentID  string       `db:"department_id" json:"department_id"`
	TeacherID     string       `db:"teacher_id" json:"teacher_id"`
	Title         string       `db:"title" json:"title"`
	Description   string       `db:"description" json:"description,omitempty"`
	StartDate     time.Time    `db:"start_date" json:"start_date"`
	DurationWeeks int          `db:"duration_weeks" json:"duration_weeks"`
	Format        CourseFormat `db:"format" json:"format"`
	Location      string       `db:"location" json:"location,omitempty"`
	Price         float64      `db:"price" json:"price"`
	Status        CourseStatus `db:"status" json:"status"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with department and teacher info.
type CourseDetail struct {
	Course
	DepartmentName string `db:"department_name" json:"department_name"`
	TeacherName    string `db:"teacher_name" json:"teacher_name"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	DepartmentID string
	TeacherID    string
	Status       CourseStatus
	Format       CourseFormat
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	DepartmentID  string       `json:"department_id" validate:"required,uuid4"`
	TeacherID     string       `json:"teacher_id" validate:"omitempty,uuid4"`
	Title         string       `json:"title" validate:"required"`
	Description   string       `json:"description"`
	StartDate     time.Time    `json:"start_date" validate:"required"`
	DurationWeeks int          `json:"duration_weeks" validate:"required,min=1"`
	Format        CourseFormat `json:"format" validate:"required,oneof=IN_PERSON ONLINE"`
	Location      string       `json:"location"`
	Price         float64      `json:"price" validate:"gte=0"`
}

// UpdateCourseRequest carries partial course updates.
type UpdateCourseRequest struct {
	DepartmentID  *string       `json:"department_id" validate:"omitempty,uuid4"`
	Title         *string       `json:"title"`
	Description   *string       `json:"description"`
	StartDate     *time.Time    `json:"start_date"`
	DurationWeeks *int          `json:"duration_weeks" validate:"omitempty,min=1"`
	Format        *CourseFormat `json:"format" validate:"omitempty,oneof=IN_PERSON ONLINE"`
	Location      *string       `json:"location"`
	Price         *float64      `json:"price" validate:"omitempty,gte=0"`
	Status        *CourseStatus `json:"status" validate:"omitempty,oneof=OPEN PENDING ARCHIVED"`
}

// ReassignTeacherRequest changes the owning teacher of a course.
type ReassignTeacherRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,uuid4"`
}
