package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oets-school/oets-api/internal/models"
	"github.com/oets-school/oets-api/pkg/config"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
	"github.com/oets-school/oets-api/pkg/storage"
)

type documentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Document, error)
	Create(ctx context.Context, document *models.Document) error
	Delete(ctx context.Context, id string) error
}

type documentEnrollmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type documentCourseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// UploadInput carries a validated multipart upload.
type UploadInput struct {
	EnrollmentID string
	Type         models.DocumentType
	FileName     string
	MimeType     string
	SizeBytes    int64
	Reader       io.Reader
}

// DocumentService manages enrollment file attachments.
type DocumentService struct {
	repo        documentRepository
	enrollments documentEnrollmentLookup
	courses     documentCourseLookup
	files       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	cfg         config.UploadsConfig
	logger      *zap.Logger
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(repo documentRepository, enrollments documentEnrollmentLookup, courses documentCourseLookup, files *storage.LocalStorage, signer *storage.SignedURLSigner, cfg config.UploadsConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:        repo,
		enrollments: enrollments,
		courses:     courses,
		files:       files,
		signer:      signer,
		cfg:         cfg,
		logger:      logger,
	}
}

// Upload stores a document for a pending enrollment owned by the caller.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput, claims *models.JWTClaims) (*models.Document, error) {
	if input.Type != models.DocumentTypeCV && input.Type != models.DocumentTypeMotivationLetter {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported document type")
	}
	if input.SizeBytes <= 0 || input.SizeBytes > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file size must be between 1 and %d bytes", s.cfg.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(input.MimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type")
	}

	enrollment, err := s.loadEnrollment(ctx, input.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if claims.Role != models.RoleAdmin && enrollment.StudentID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	if enrollment.Status != models.EnrollmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "documents can only be attached to pending enrollments")
	}

	documentID := uuid.NewString()
	relPath := filepath.Join("enrollments", enrollment.ID, documentID+filepath.Ext(input.FileName))

	limited := io.LimitReader(input.Reader, s.cfg.MaxFileSizeBytes)
	if _, err := s.files.SaveStream(relPath, limited); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	document := &models.Document{
		ID:           documentID,
		EnrollmentID: enrollment.ID,
		Type:         input.Type,
		FileName:     input.FileName,
		FilePath:     relPath,
		MimeType:     input.MimeType,
		SizeBytes:    input.SizeBytes,
	}

	if err := s.repo.Create(ctx, document); err != nil {
		if removeErr := s.files.Delete(relPath); removeErr != nil {
			s.logger.Warn("failed to clean up orphaned upload", zap.String("path", relPath), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist document")
	}

	s.logger.Info("document uploaded",
		zap.String("document_id", document.ID),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("type", string(document.Type)))
	return document, nil
}

// Get returns document metadata together with a signed download URL.
func (s *DocumentService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.DocumentInfo, error) {
	document, err := s.findAuthorized(ctx, id, claims)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(document.ID, document.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	return &models.DocumentInfo{
		Document:    *document,
		DownloadURL: fmt.Sprintf("/documents/%s/download?token=%s", document.ID, token),
		URLExpires:  expiresAt,
	}, nil
}

// Open validates a signed token and returns the file for streaming along
// with its metadata. Callers must close the returned file.
func (s *DocumentService) Open(ctx context.Context, id, token string) (*models.Document, *os.File, error) {
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	if documentID != id {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match document")
	}

	document, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if document.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match document")
	}

	file, err := s.files.Open(document.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return document, file, nil
}

// Delete removes a document. Students may delete only their own while the
// enrollment is still pending; admins may delete any.
func (s *DocumentService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	document, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	enrollment, err := s.loadEnrollment(ctx, document.EnrollmentID)
	if err != nil {
		return err
	}

	if claims.Role != models.RoleAdmin {
		if claims.Role != models.RoleStudent || enrollment.StudentID != claims.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "forbidden")
		}
		if enrollment.Status != models.EnrollmentStatusPending {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "documents can only be removed while the enrollment is pending")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}

	if err := s.files.Delete(document.FilePath); err != nil {
		s.logger.Warn("failed to remove document file", zap.String("document_id", id), zap.Error(err))
	}
	return nil
}

func (s *DocumentService) findAuthorized(ctx context.Context, id string, claims *models.JWTClaims) (*models.Document, error) {
	document, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	enrollment, err := s.loadEnrollment(ctx, document.EnrollmentID)
	if err != nil {
		return nil, err
	}

	switch claims.Role {
	case models.RoleAdmin:
		return document, nil
	case models.RoleStudent:
		if enrollment.StudentID == claims.UserID {
			return document, nil
		}
	case models.RoleTeacher:
		course, err := s.courses.FindByID(ctx, enrollment.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if course.TeacherID == claims.UserID {
			return document, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "forbidden")
}

func (s *DocumentService) loadEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *DocumentService) mimeAllowed(mime string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if mime == allowed {
			return true
		}
	}
	return false
}
