package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oets-school/oets-api/internal/models"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
)

type trainingRequestRepository interface {
	List(ctx context.Context, status models.TrainingRequestStatus, page, pageSize int) ([]models.TrainingRequest, int, error)
	FindByID(ctx context.Context, id string) (*models.TrainingRequest, error)
	Create(ctx context.Context, request *models.TrainingRequest) error
	UpdateStatus(ctx context.Context, id string, status models.TrainingRequestStatus, processedAt time.Time) (bool, error)
}

// TrainingRequestService handles custom training inquiries.
type TrainingRequestService struct {
	repo      trainingRequestRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTrainingRequestService constructs a TrainingRequestService.
func NewTrainingRequestService(repo trainingRequestRepository, validate *validator.Validate, logger *zap.Logger) *TrainingRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TrainingRequestService{repo: repo, validator: validate, logger: logger}
}

// Create submits a PENDING inquiry for the calling user. Group requests
// require an organization name.
func (s *TrainingRequestService) Create(ctx context.Context, req models.CreateTrainingRequest, userID string) (*models.TrainingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training request payload")
	}
	if req.RequestType == models.TrainingRequestGroup && req.OrganizationName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organization name is required for group requests")
	}

	request := &models.TrainingRequest{
		UserID:           userID,
		RequestType:      req.RequestType,
		OrganizationName: req.OrganizationName,
		NeedsDescription: req.NeedsDescription,
		Status:           models.TrainingRequestPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create training request")
	}

	s.logger.Info("training request submitted",
		zap.String("request_id", request.ID),
		zap.String("user_id", userID),
		zap.String("type", string(request.RequestType)))
	return request, nil
}

// List returns inquiries for back-office review, optionally by status.
func (s *TrainingRequestService) List(ctx context.Context, status models.TrainingRequestStatus, page, pageSize int) ([]models.TrainingRequest, *models.Pagination, error) {
	if status != "" && status != models.TrainingRequestPending && status != models.TrainingRequestProcessed && status != models.TrainingRequestRejected {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
	}
	requests, total, err := s.repo.List(ctx, status, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list training requests")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a training request by identifier.
func (s *TrainingRequestService) Get(ctx context.Context, id string) (*models.TrainingRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training request")
	}
	return request, nil
}

// UpdateStatus records the admin verdict. PROCESSED and REJECTED are both
// terminal; a request that has already left PENDING yields
// PRECONDITION_FAILED.
func (s *TrainingRequestService) UpdateStatus(ctx context.Context, id string, req models.TrainingRequestStatusUpdate) (*models.TrainingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.TrainingRequestPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "training request has already been processed")
	}

	processedAt := time.Now().UTC()
	updated, err := s.repo.UpdateStatus(ctx, id, req.Status, processedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update training request")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "training request has already been processed")
	}

	request.Status = req.Status
	request.ProcessedAt = &processedAt

	s.logger.Info("training request processed",
		zap.String("request_id", id),
		zap.String("status", string(req.Status)))
	return request, nil
}
