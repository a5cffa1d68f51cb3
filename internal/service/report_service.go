package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oets-school/oets-api/internal/models"
	"github.com/oets-school/oets-api/pkg/config"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
	"github.com/oets-school/oets-api/pkg/export"
	"github.com/oets-school/oets-api/pkg/jobs"
	"github.com/oets-school/oets-api/pkg/storage"
)

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus, progress int) error
	MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error
}

type reportEnrollmentSource interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type reportCourseSource interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// ReportService generates roster and catalog exports in the background and
// serves the finished artifacts through signed URLs.
type ReportService struct {
	repo        reportRepository
	enrollments reportEnrollmentSource
	courses     reportCourseSource
	files       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	queue       *jobs.Queue
	cfg         config.ReportsConfig
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReportService constructs the service and its worker queue.
func NewReportService(repo reportRepository, enrollments reportEnrollmentSource, courses reportCourseSource, files *storage.LocalStorage, signer *storage.SignedURLSigner, cfg config.ReportsConfig, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &ReportService{
		repo:        repo,
		enrollments: enrollments,
		courses:     courses,
		files:       files,
		signer:      signer,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		cfg:         cfg,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
	s.queue = jobs.NewQueue("reports", s.handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start begins queue consumption and the periodic artifact cleanup loop.
func (s *ReportService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	s.queue.Start(ctx)
	go s.cleanupLoop(ctx)
}

// Stop drains the queue workers.
func (s *ReportService) Stop() {
	if !s.cfg.Enabled {
		return
	}
	s.queue.Stop()
}

// Create queues an export job. Teachers may only export enrollments of
// courses they own.
func (s *ReportService) Create(ctx context.Context, req models.CreateReportRequest, claims *models.JWTClaims) (*models.ReportJob, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "report generation is disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	if claims.Role == models.RoleTeacher {
		if req.Type != models.ReportTypeEnrollments {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers may only export enrollment reports")
		}
		if req.CourseID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course_id is required for teacher reports")
		}
		course, err := s.courses.FindByID(ctx, *req.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if course.TeacherID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another teacher")
		}
	}

	job := &models.ReportJob{
		Type: req.Type,
		Params: models.ReportJobParams{
			CourseID:     req.CourseID,
			DepartmentID: req.DepartmentID,
			Format:       req.Format,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: claims.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type), Payload: job.ID}); err != nil {
		now := time.Now().UTC()
		if markErr := s.repo.MarkFailed(ctx, job.ID, "worker queue unavailable", now); markErr != nil {
			s.logger.Error("failed to mark unqueued report job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue report job")
	}

	s.logger.Info("report job queued",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("format", string(job.Params.Format)))
	return job, nil
}

// Get returns a job's status to its creator or an admin.
func (s *ReportService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if claims.Role != models.RoleAdmin && job.CreatedBy != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return job, nil
}

// Open validates a signed token and returns the artifact for streaming.
// Callers must close the returned file.
func (s *ReportService) Open(ctx context.Context, id, token string) (*models.ReportJob, *os.File, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	if jobID != id {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match report")
	}

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "report is not finished")
	}

	file, err := s.files.Open(relPath)
	if err != nil {
		// The artifact may have been removed by the cleanup loop after the
		// signed URL was issued.
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report artifact no longer available")
	}
	return job, file, nil
}

func (s *ReportService) handle(ctx context.Context, queued jobs.Job) error {
	jobID, ok := queued.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", queued.Payload)
	}

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", jobID, err)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, models.ReportStatusProcessing, 10); err != nil {
		return fmt.Errorf("mark report job processing: %w", err)
	}

	if err := s.generate(ctx, job); err != nil {
		s.metrics.RecordJob("reports", "failed")
		now := time.Now().UTC()
		if markErr := s.repo.MarkFailed(ctx, job.ID, err.Error(), now); markErr != nil {
			s.logger.Error("failed to mark report job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return err
	}

	s.metrics.RecordJob("reports", "finished")
	return nil
}

func (s *ReportService) generate(ctx context.Context, job *models.ReportJob) error {
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, models.ReportStatusProcessing, 60); err != nil {
		return fmt.Errorf("update report job progress: %w", err)
	}

	var rendered []byte
	switch job.Params.Format {
	case models.ReportFormatPDF:
		rendered, err = s.pdf.Render(dataset, title)
	default:
		rendered, err = s.csv.Render(dataset)
	}
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	relPath := filepath.Join("reports", fmt.Sprintf("%s.%s", job.ID, job.Params.Format))
	if _, err := s.files.Save(relPath, rendered); err != nil {
		return fmt.Errorf("store report artifact: %w", err)
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign report url: %w", err)
	}
	resultURL := fmt.Sprintf("/reports/%s/download?token=%s", job.ID, token)

	if err := s.repo.MarkFinished(ctx, job.ID, resultURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report job finished: %w", err)
	}

	s.logger.Info("report generated",
		zap.String("job_id", job.ID),
		zap.String("path", relPath),
		zap.Int("rows", len(dataset.Rows)))
	return nil
}

func (s *ReportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeEnrollments:
		return s.enrollmentDataset(ctx, job.Params)
	case models.ReportTypeCourses:
		return s.courseDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %q", job.Type)
	}
}

func (s *ReportService) enrollmentDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.EnrollmentFilter{Page: 1, PageSize: reportPageSize}
	if params.CourseID != nil {
		filter.CourseID = *params.CourseID
	}
	if params.DepartmentID != nil {
		filter.DepartmentID = *params.DepartmentID
	}

	headers := []string{"Enrollment ID", "Student", "Email", "Course", "Status", "Enrolled At", "Decided At"}
	rows := make([]map[string]string, 0)
	for {
		page, total, err := s.enrollments.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("list enrollments: %w", err)
		}
		for _, e := range page {
			decidedAt := ""
			if e.DecidedAt != nil {
				decidedAt = e.DecidedAt.Format(time.RFC3339)
			}
			rows = append(rows, map[string]string{
				"Enrollment ID": e.ID,
				"Student":       e.StudentName,
				"Email":         e.StudentEmail,
				"Course":        e.CourseTitle,
				"Status":        string(e.Status),
				"Enrolled At":   e.EnrolledAt.Format(time.RFC3339),
				"Decided At":    decidedAt,
			})
		}
		if len(rows) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}
	return export.Dataset{Headers: headers, Rows: rows}, "Enrollment Report", nil
}

func (s *ReportService) courseDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.CourseFilter{Page: 1, PageSize: reportPageSize}
	if params.DepartmentID != nil {
		filter.DepartmentID = *params.DepartmentID
	}

	headers := []string{"Course ID", "Title", "Department", "Teacher", "Format", "Status", "Start Date", "Price"}
	rows := make([]map[string]string, 0)
	for {
		page, total, err := s.courses.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("list courses: %w", err)
		}
		for _, c := range page {
			rows = append(rows, map[string]string{
				"Course ID":  c.ID,
				"Title":      c.Title,
				"Department": c.DepartmentName,
				"Teacher":    c.TeacherName,
				"Format":     string(c.Format),
				"Status":     string(c.Status),
				"Start Date": c.StartDate.Format("2006-01-02"),
				"Price":      fmt.Sprintf("%.2f", c.Price),
			})
		}
		if len(rows) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}
	return export.Dataset{Headers: headers, Rows: rows}, "Course Catalog Report", nil
}

const reportPageSize = 100

func (s *ReportService) cleanupLoop(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.files.CleanupOlderThan(s.cfg.SignedURLTTL)
			if err != nil {
				s.logger.Warn("report artifact cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.logger.Info("expired report artifacts removed", zap.Int("count", len(deleted)))
			}
		}
	}
}
