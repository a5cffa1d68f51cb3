package models

import "time"

// Page is an admin-managed CMS page addressed by slug.
type Page struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Slug        string    `db:"slug" json:"slug"`
	HTMLContent string    `db:"html_content" json:"html_content"`
	Visible     bool      `db:"visible" json:"visible"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CreatePageRequest is the admin payload for new pages.
type CreatePageRequest struct {
	Title       string `json:"title" validate:"required"`
	Slug        string `json:"slug" validate:"required,lowercase"`
	HTMLContent string `json:"html_content" validate:"required"`
	Visible     *bool  `json:"visible"`
}

// UpdatePageRequest carries partial page updates.
type UpdatePageRequest struct {
	Title       *string `json:"title"`
	Slug        *string `json:"slug" validate:"omitempty,lowercase"`
	HTMLContent *string `json:"html_content"`
	Visible     *bool   `json:"visible"`
}
