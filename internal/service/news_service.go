package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oets-school/oets-api/internal/models"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
)

type newsRepository interface {
	List(ctx context.Context, page, pageSize int) ([]models.News, int, error)
	FindByID(ctx context.Context, id string) (*models.News, error)
	Create(ctx context.Context, item *models.News) error
	Update(ctx context.Context, item *models.News) error
	Delete(ctx context.Context, id string) error
}

// NewsService manages public announcements.
type NewsService struct {
	repo      newsRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNewsService constructs a NewsService.
func NewNewsService(repo newsRepository, validate *validator.Validate, logger *zap.Logger) *NewsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NewsService{repo: repo, validator: validate, logger: logger}
}

// List returns published news, newest first.
func (s *NewsService) List(ctx context.Context, page, pageSize int) ([]models.News, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list news")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a news item by identifier.
func (s *NewsService) Get(ctx context.Context, id string) (*models.News, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "news not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load news")
	}
	return item, nil
}

// Create publishes a news item authored by the caller.
func (s *NewsService) Create(ctx context.Context, req models.CreateNewsRequest, authorID string) (*models.News, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid news payload")
	}
	item := &models.News{Title: req.Title, Content: req.Content, AuthorID: authorID}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create news")
	}
	return item, nil
}

// Update modifies a news item.
func (s *NewsService) Update(ctx context.Context, id string, req models.UpdateNewsRequest) (*models.News, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid news payload")
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Content != nil {
		item.Content = *req.Content
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update news")
	}
	return item, nil
}

// Delete removes a news item.
func (s *NewsService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "news not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete news")
	}
	return nil
}
