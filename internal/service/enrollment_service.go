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

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateDecision(ctx context.Context, id string, status models.EnrollmentStatus, decidedBy string, decidedAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type enrollmentCourseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentDocumentLister interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Document, error)
}

type fileRemover interface {
	Delete(filename string) error
}

type confirmationEnqueuer interface {
	EnqueueEnrollmentConfirmation(payload EnrollmentConfirmation) error
}

// EnrollmentService orchestrates the enrollment workflow.
type EnrollmentService struct {
	repo          enrollmentRepository
	courses       enrollmentCourseLookup
	documents     enrollmentDocumentLister
	files         fileRemover
	notifications confirmationEnqueuer
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses enrollmentCourseLookup, documents enrollmentDocumentLister, files fileRemover, notifications confirmationEnqueuer, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{
		repo:          repo,
		courses:       courses,
		documents:     documents,
		files:         files,
		notifications: notifications,
		validator:     validate,
		logger:        logger,
	}
}

// Create registers a pending enrollment for the calling student. The course
// must be OPEN; a second active enrollment for the same (student, course)
// pair is rejected by the database constraint and surfaces as 409.
func (s *EnrollmentService) Create(ctx context.Context, req models.CreateEnrollmentRequest, claims *models.JWTClaims) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Status != models.CourseStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not open for enrollment")
	}

	enrollment := &models.Enrollment{
		StudentID:  claims.UserID,
		CourseID:   req.CourseID,
		Motivation: req.Motivation,
		Status:     models.EnrollmentStatusPending,
	}

	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, err
	}

	// The confirmation is enqueued once, after the insert commits. A queue
	// failure is logged inside the notification service and never rolls
	// back the enrollment.
	_ = s.notifications.EnqueueEnrollmentConfirmation(EnrollmentConfirmation{
		EnrollmentID: enrollment.ID,
		StudentName:  claims.FullName,
		StudentEmail: claims.Email,
		CourseTitle:  course.Title,
	})

	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("course_id", enrollment.CourseID))
	return enrollment, nil
}

// List returns enrollments scoped to the caller: students see their own,
// teachers those of courses they own, admins everything.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter, claims *models.JWTClaims) ([]models.EnrollmentDetail, *models.Pagination, error) {
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleTeacher:
		filter.TeacherID = claims.UserID
	}

	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns an enrollment if the caller may see it.
func (s *EnrollmentService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if err := s.authorize(ctx, &detail.Enrollment, claims); err != nil {
		return nil, err
	}
	return detail, nil
}

// Decide records the verdict on a pending enrollment. Both outcomes are
// terminal; a non-pending enrollment yields PRECONDITION_FAILED.
func (s *EnrollmentService) Decide(ctx context.Context, id string, req models.EnrollmentDecisionRequest, claims *models.JWTClaims) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if claims.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students cannot decide enrollments")
	}
	if claims.Role == models.RoleTeacher {
		course, err := s.courses.FindByID(ctx, enrollment.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if course.TeacherID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another teacher's course")
		}
	}

	if enrollment.Status != models.EnrollmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment has already been decided")
	}

	decidedAt := time.Now().UTC()
	updated, err := s.repo.UpdateDecision(ctx, id, req.Decision, claims.UserID, decidedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	if !updated {
		// Lost the race to a concurrent decision.
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment has already been decided")
	}

	enrollment.Status = req.Decision
	enrollment.DecidedAt = &decidedAt
	enrollment.DecidedBy = &claims.UserID

	s.logger.Info("enrollment decided",
		zap.String("enrollment_id", id),
		zap.String("decision", string(req.Decision)),
		zap.String("decided_by", claims.UserID))
	return enrollment, nil
}

// Delete withdraws an enrollment. Students may withdraw only while PENDING;
// admins may delete any. Document rows cascade at the database layer and
// their stored files are removed best-effort.
func (s *EnrollmentService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		if enrollment.StudentID != claims.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
		}
		if enrollment.Status != models.EnrollmentStatusPending {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending enrollments can be withdrawn")
		}
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "forbidden")
	}

	documents, err := s.documents.ListByEnrollment(ctx, id)
	if err != nil {
		s.logger.Warn("failed to list documents before enrollment delete", zap.String("enrollment_id", id), zap.Error(err))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}

	for _, doc := range documents {
		if err := s.files.Delete(doc.FilePath); err != nil {
			s.logger.Warn("failed to remove document file", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}

	s.logger.Info("enrollment deleted", zap.String("enrollment_id", id), zap.String("deleted_by", claims.UserID))
	return nil
}

func (s *EnrollmentService) authorize(ctx context.Context, enrollment *models.Enrollment, claims *models.JWTClaims) error {
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if enrollment.StudentID == claims.UserID {
			return nil
		}
	case models.RoleTeacher:
		course, err := s.courses.FindByID(ctx, enrollment.CourseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if course.TeacherID == claims.UserID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "forbidden")
}
