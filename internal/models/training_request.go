package models

import "time"

// TrainingRequestType distinguishes individual and group inquiries.
type TrainingRequestType string

const (
	TrainingRequestIndividual TrainingRequestType = "INDIVIDUAL"
	TrainingRequestGroup      TrainingRequestType = "GROUP"
)

// TrainingRequestStatus tracks back-office processing state.
type TrainingRequestStatus string

const (
	TrainingRequestPending   TrainingRequestStatus = "PENDING"
	TrainingRequestProcessed TrainingRequestStatus = "PROCESSED"
	TrainingRequestRejected  TrainingRequestStatus = "REJECTED"
)

// TrainingRequest is a custom training inquiry submitted by a user.
type TrainingRequest struct {
	ID               string                `db:"id" json:"id"`
	UserID           string                `db:"user_id" json:"user_id"`
	RequestType      TrainingRequestType   `db:"request_type" json:"request_type"`
	OrganizationName string                `db:"organization_name" json:"organization_name,omitempty"`
	NeedsDescription string                `db:"needs_description" json:"needs_description"`
	Status           TrainingRequestStatus `db:"status" json:"status"`
	RequestedAt      time.Time             `db:"requested_at" json:"requested_at"`
	ProcessedAt      *time.Time            `db:"processed_at" json:"processed_at,omitempty"`
}

// CreateTrainingRequest is the payload for submitting an inquiry.
type CreateTrainingRequest struct {
	RequestType      TrainingRequestType `json:"request_type" validate:"required,oneof=INDIVIDUAL GROUP"`
	OrganizationName string              `json:"organization_name"`
	NeedsDescription string              `json:"needs_description" validate:"required"`
}

// TrainingRequestStatusUpdate carries the admin verdict.
type TrainingRequestStatusUpdate struct {
	Status TrainingRequestStatus `json:"status" validate:"required,oneof=PROCESSED REJECTED"`
}
