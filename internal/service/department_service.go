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

const departmentsCacheKey = "catalog:departments"

type departmentRepository interface {
	List(ctx context.Context) ([]models.Department, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id string) error
}

// DepartmentService manages the department reference data.
type DepartmentService struct {
	repo      departmentRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs a DepartmentService.
func NewDepartmentService(repo departmentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DepartmentService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns all departments, served from cache when possible.
func (s *DepartmentService) List(ctx context.Context) ([]models.Department, error) {
	var cached []models.Department
	if hit, err := s.cache.Get(ctx, departmentsCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	departments, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}

	_ = s.cache.Set(ctx, departmentsCacheKey, departments, 0)
	return departments, nil
}

// Get returns a department by identifier.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return department, nil
}

// Create adds a new department and invalidates the catalog cache.
func (s *DepartmentService) Create(ctx context.Context, req models.CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}

	department := &models.Department{
		Name:        req.Name,
		Language:    req.Language,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, department); err != nil {
		return nil, err
	}

	_ = s.cache.Invalidate(ctx, "catalog:*")
	return department, nil
}

// Update modifies a department and invalidates the catalog cache.
func (s *DepartmentService) Update(ctx context.Context, id string, req models.UpdateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}

	department, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		department.Name = *req.Name
	}
	if req.Language != nil {
		department.Language = *req.Language
	}
	if req.Description != nil {
		department.Description = *req.Description
	}

	if err := s.repo.Update(ctx, department); err != nil {
		return nil, err
	}

	_ = s.cache.Invalidate(ctx, "catalog:*")
	return department, nil
}

// Delete removes a department and invalidates the catalog cache.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return err
	}
	_ = s.cache.Invalidate(ctx, "catalog:*")
	return nil
}
