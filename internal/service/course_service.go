package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oets-school/oets-api/internal/models"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error
	UpdateTeacher(ctx context.Context, id, teacherID string) error
}

type courseUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type courseDepartmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

// CourseService manages the course catalog and ownership rules.
type CourseService struct {
	repo        courseRepository
	users       courseUserLookup
	departments courseDepartmentLookup
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, users courseUserLookup, departments courseDepartmentLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, users: users, departments: departments, cache: cache, validator: validate, logger: logger}
}

func courseListCacheKey(filter models.CourseFilter) string {
	return fmt.Sprintf("catalog:courses:%s:%s:%s:%s:%s:%d:%d:%s:%s",
		filter.DepartmentID, filter.TeacherID, filter.Status, filter.Format, filter.Search,
		filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

type cachedCourseList struct {
	Courses    []models.CourseDetail `json:"courses"`
	Pagination models.Pagination     `json:"pagination"`
}

// List returns courses matching the filter, served from cache when possible.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	key := courseListCacheKey(filter)
	var cached cachedCourseList
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached.Courses, &cached.Pagination, nil
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	pagination := models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}

	_ = s.cache.Set(ctx, key, cachedCourseList{Courses: courses, Pagination: pagination}, 0)
	return courses, &pagination, nil
}

// Get returns a course with department and teacher info.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return detail, nil
}

// Create adds a course. Teachers always own the courses they create; admins
// may assign any teacher via TeacherID.
func (s *CourseService) Create(ctx context.Context, req models.CreateCourseRequest, claims *models.JWTClaims) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	teacherID := claims.UserID
	if claims.Role == models.RoleAdmin {
		if req.TeacherID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required for admin-created courses")
		}
		teacherID = req.TeacherID
	}

	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "department does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	course := &models.Course{
		DepartmentID:  req.DepartmentID,
		TeacherID:     teacherID,
		Title:         req.Title,
		Description:   req.Description,
		StartDate:     req.StartDate,
		DurationWeeks: req.DurationWeeks,
		Format:        req.Format,
		Location:      req.Location,
		Price:         req.Price,
		Status:        models.CourseStatusPending,
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	_ = s.cache.Invalidate(ctx, "catalog:courses:*")
	return course, nil
}

// Update modifies a course. Only the owning teacher or an admin may update.
func (s *CourseService) Update(ctx context.Context, id string, req models.UpdateCourseRequest, claims *models.JWTClaims) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.findOwned(ctx, id, claims)
	if err != nil {
		return nil, err
	}

	if req.DepartmentID != nil {
		if _, err := s.departments.FindByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "department does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
		course.DepartmentID = *req.DepartmentID
	}
	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.StartDate != nil {
		course.StartDate = *req.StartDate
	}
	if req.DurationWeeks != nil {
		course.DurationWeeks = *req.DurationWeeks
	}
	if req.Format != nil {
		course.Format = *req.Format
	}
	if req.Location != nil {
		course.Location = *req.Location
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.Status != nil {
		course.Status = *req.Status
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	_ = s.cache.Invalidate(ctx, "catalog:courses:*")
	return course, nil
}

// Archive retires a course from the catalog instead of deleting it, so
// historical enrollments keep their reference.
func (s *CourseService) Archive(ctx context.Context, id string, claims *models.JWTClaims) error {
	course, err := s.findOwned(ctx, id, claims)
	if err != nil {
		return err
	}
	if course.Status == models.CourseStatusArchived {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, id, models.CourseStatusArchived); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive course")
	}
	_ = s.cache.Invalidate(ctx, "catalog:courses:*")
	return nil
}

// ReassignTeacher transfers ownership to another teacher. Admin only,
// enforced at the route layer.
func (s *CourseService) ReassignTeacher(ctx context.Context, id string, req models.ReassignTeacherRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassignment payload")
	}
	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return err
	}
	if err := s.repo.UpdateTeacher(ctx, id, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign teacher")
	}
	_ = s.cache.Invalidate(ctx, "catalog:courses:*")
	return nil
}

func (s *CourseService) findOwned(ctx context.Context, id string, claims *models.JWTClaims) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if claims.Role != models.RoleAdmin && course.TeacherID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another teacher")
	}
	return course, nil
}

func (s *CourseService) ensureTeacher(ctx context.Context, id string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "teacher does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if user.Role != models.RoleTeacher || !user.Active {
		return appErrors.Clone(appErrors.ErrValidation, "user is not an active teacher")
	}
	return nil
}
