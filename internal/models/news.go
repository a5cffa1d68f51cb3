package models

import "time"

// News is a published announcement shown on the public site.
type News struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Content     string    `db:"content" json:"content"`
	AuthorID    string    `db:"author_id" json:"author_id"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CreateNewsRequest is the admin payload for publishing news.
type CreateNewsRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// UpdateNewsRequest carries partial news updates.
type UpdateNewsRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}
