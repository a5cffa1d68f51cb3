package models

import "time"

// Department groups courses by taught language.
type Department struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Language    string    `db:"language" json:"language"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CreateDepartmentRequest is the admin payload for new departments.
type CreateDepartmentRequest struct {
	Name        string `json:"name" validate:"required"`
	Language    string `json:"language" validate:"required"`
	Description string `json:"description"`
}

// UpdateDepartmentRequest carries partial department updates.
type UpdateDepartmentRequest struct {
	Name        *string `json:"name"`
	Language    *string `json:"language"`
	Description *string `json:"description"`
}
