package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. PENDING and APPROVED count as active for
// the per-(student, course) uniqueness constraint.
const (
	EnrollmentStatusPending  EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected EnrollmentStatus = "REJECTED"
)

// Enrollment captures a student's application to a course.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Motivation string           `db:"motivation" json:"motivation,omitempty"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	DecidedAt  *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
	DecidedBy  *string          `db:"decided_by" json:"decided_by,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	CourseTitle  string `db:"course_title" json:"course_title"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID    string
	CourseID     string
	TeacherID    string
	DepartmentID string
	Status       EnrollmentStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// CreateEnrollmentRequest is the student payload for applying to a course.
type CreateEnrollmentRequest struct {
	CourseID   string `json:"course_id" validate:"required,uuid4"`
	Motivation string `json:"motivation"`
}

// EnrollmentDecisionRequest carries the teacher/admin verdict.
type EnrollmentDecisionRequest struct {
	Decision EnrollmentStatus `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
}
