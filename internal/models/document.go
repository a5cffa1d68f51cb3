package models

import "time"

// DocumentType enumerates supported enrollment attachments.
type DocumentType string

const (
	DocumentTypeCV               DocumentType = "CV"
	DocumentTypeMotivationLetter DocumentType = "MOTIVATION_LETTER"
)

// Document represents a file attached to an enrollment. Rows are removed
// by the database when the owning enrollment is deleted.
type Document struct {
	ID           string       `db:"id" json:"id"`
	EnrollmentID string       `db:"enrollment_id" json:"enrollment_id"`
	Type         DocumentType `db:"type" json:"type"`
	FileName     string       `db:"file_name" json:"file_name"`
	FilePath     string       `db:"file_path" json:"-"`
	MimeType     string       `db:"mime_type" json:"mime_type"`
	SizeBytes    int64        `db:"size_bytes" json:"size_bytes"`
	UploadedAt   time.Time    `db:"uploaded_at" json:"uploaded_at"`
}

// DocumentInfo is the metadata response including a signed download URL.
type DocumentInfo struct {
	Document
	DownloadURL string    `json:"download_url"`
	URLExpires  time.Time `json:"url_expires"`
}
