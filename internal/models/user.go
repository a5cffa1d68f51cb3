package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
type User struct {
	ID             string     `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	FullName       string     `db:"full_name" json:"full_name"`
	Phone          string     `db:"phone" json:"phone,omitempty"`
	EducationLevel string     `db:"education_level" json:"education_level,omitempty"`
	Profession     string     `db:"profession" json:"profession,omitempty"`
	Role           UserRole   `db:"role" json:"role"`
	Active         bool       `db:"active" json:"active"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateUserRequest is the registration payload. Role is honored only when
// the caller is an admin; public registrations always become students.
type CreateUserRequest struct {
	Email          string   `json:"email" validate:"required,email"`
	Password       string   `json:"password" validate:"required,min=6"`
	FullName       string   `json:"full_name" validate:"required"`
	Phone          string   `json:"phone"`
	EducationLevel string   `json:"education_level"`
	Profession     string   `json:"profession"`
	Role           UserRole `json:"role" validate:"omitempty,oneof=STUDENT TEACHER ADMIN"`
}

// UpdateUserRequest carries partial profile updates.
type UpdateUserRequest struct {
	FullName       *string   `json:"full_name"`
	Phone          *string   `json:"phone"`
	EducationLevel *string   `json:"education_level"`
	Profession     *string   `json:"profession"`
	Role           *UserRole `json:"role" validate:"omitempty,oneof=STUDENT TEACHER ADMIN"`
	Active         *bool     `json:"active"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
