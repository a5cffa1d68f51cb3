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

type pageRepository interface {
	List(ctx context.Context, visibleOnly bool) ([]models.Page, error)
	FindBySlug(ctx context.Context, slug string) (*models.Page, error)
	FindByID(ctx context.Context, id string) (*models.Page, error)
	Create(ctx context.Context, page *models.Page) error
	Update(ctx context.Context, page *models.Page) error
	Delete(ctx context.Context, id string) error
}

// PageService manages CMS pages.
type PageService struct {
	repo      pageRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPageService constructs a PageService.
func NewPageService(repo pageRepository, validate *validator.Validate, logger *zap.Logger) *PageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PageService{repo: repo, validator: validate, logger: logger}
}

// List returns pages. Non-admin callers only see visible pages.
func (s *PageService) List(ctx context.Context, includeHidden bool) ([]models.Page, error) {
	pages, err := s.repo.List(ctx, !includeHidden)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pages")
	}
	return pages, nil
}

// GetBySlug returns a visible page by slug. Hidden pages behave as missing
// for non-admin callers.
func (s *PageService) GetBySlug(ctx context.Context, slug string, includeHidden bool) (*models.Page, error) {
	page, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "page not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load page")
	}
	if !page.Visible && !includeHidden {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "page not found")
	}
	return page, nil
}

// Create adds a CMS page. Slug collisions surface as 409.
func (s *PageService) Create(ctx context.Context, req models.CreatePageRequest) (*models.Page, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid page payload")
	}
	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}
	page := &models.Page{
		Title:       req.Title,
		Slug:        req.Slug,
		HTMLContent: req.HTMLContent,
		Visible:     visible,
	}
	if err := s.repo.Create(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

// Update modifies a page.
func (s *PageService) Update(ctx context.Context, id string, req models.UpdatePageRequest) (*models.Page, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid page payload")
	}
	page, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "page not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load page")
	}
	if req.Title != nil {
		page.Title = *req.Title
	}
	if req.Slug != nil {
		page.Slug = *req.Slug
	}
	if req.HTMLContent != nil {
		page.HTMLContent = *req.HTMLContent
	}
	if req.Visible != nil {
		page.Visible = *req.Visible
	}
	if err := s.repo.Update(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

// Delete removes a page.
func (s *PageService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "page not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete page")
	}
	return nil
}
