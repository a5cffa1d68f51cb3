package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oets-school/oets-api/internal/models"
	"github.com/oets-school/oets-api/pkg/config"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
	"github.com/oets-school/oets-api/pkg/storage"
)

const reportCourseID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"

type mockReportRepo struct {
	mu   sync.Mutex
	byID map[string]*models.ReportJob
}

func (m *mockReportRepo) Create(ctx context.Context, job *models.ReportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = "job-1"
	job.CreatedAt = time.Now().UTC()
	copied := *job
	m.byID[job.ID] = &copied
	return nil
}

func (m *mockReportRepo) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (m *mockReportRepo) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.byID[id]; ok {
		job.Status = status
		job.Progress = progress
	}
	return nil
}

func (m *mockReportRepo) MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.byID[id]; ok {
		job.Status = models.ReportStatusFinished
		job.Progress = 100
		job.ResultURL = &resultURL
		job.FinishedAt = &finishedAt
	}
	return nil
}

func (m *mockReportRepo) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.byID[id]; ok {
		job.Status = models.ReportStatusFailed
		job.ErrorMessage = &message
		job.FinishedAt = &finishedAt
	}
	return nil
}

func newReportFixture(t *testing.T) (*mockReportRepo, *ReportService) {
	t.Helper()
	repo := &mockReportRepo{byID: make(map[string]*models.ReportJob)}
	enrollments := &mockEnrollmentRepo{byID: make(map[string]*models.Enrollment)}
	courses := &mockCourseRepo{byID: map[string]*models.Course{
		reportCourseID: {ID: reportCourseID, TeacherID: teacherOneID, Title: "Welding Basics", Status: models.CourseStatusOpen},
	}}

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", 30*time.Minute)

	cfg := config.ReportsConfig{
		Enabled:           true,
		SignedURLTTL:      30 * time.Minute,
		WorkerConcurrency: 1,
		WorkerRetries:     1,
	}
	svc := NewReportService(repo, enrollments, courses, files, signer, cfg, nil, validator.New(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		svc.Stop()
	})
	return repo, svc
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestReportLifecycleProducesDownloadableArtifact(t *testing.T) {
	repo, svc := newReportFixture(t)

	job, err := svc.Create(context.Background(), models.CreateReportRequest{Type: models.ReportTypeCourses, Format: models.ReportFormatCSV}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, job.Status)

	require.Eventually(t, func() bool {
		stored, err := repo.FindByID(context.Background(), job.ID)
		return err == nil && stored.Status == models.ReportStatusFinished
	}, 5*time.Second, 10*time.Millisecond)

	stored, err := repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResultURL)
	token := strings.SplitN(*stored.ResultURL, "token=", 2)[1]

	opened, file, err := svc.Open(context.Background(), job.ID, token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, models.ReportStatusFinished, opened.Status)
}

func TestReportCreateTeacherLimitedToOwnEnrollments(t *testing.T) {
	_, svc := newReportFixture(t)
	claims := &models.JWTClaims{UserID: teacherOneID, Role: models.RoleTeacher}

	_, err := svc.Create(context.Background(), models.CreateReportRequest{Type: models.ReportTypeCourses, Format: models.ReportFormatCSV}, claims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), models.CreateReportRequest{Type: models.ReportTypeEnrollments, Format: models.ReportFormatCSV}, claims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	courseID := reportCourseID
	job, err := svc.Create(context.Background(), models.CreateReportRequest{Type: models.ReportTypeEnrollments, Format: models.ReportFormatCSV, CourseID: &courseID}, claims)
	require.NoError(t, err)
	assert.Equal(t, teacherOneID, job.CreatedBy)
}

func TestReportCreateForeignTeacherForbidden(t *testing.T) {
	_, svc := newReportFixture(t)
	claims := &models.JWTClaims{UserID: teacherTwoID, Role: models.RoleTeacher}

	courseID := reportCourseID
	_, err := svc.Create(context.Background(), models.CreateReportRequest{Type: models.ReportTypeEnrollments, Format: models.ReportFormatCSV, CourseID: &courseID}, claims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportGetScopedToCreator(t *testing.T) {
	repo, svc := newReportFixture(t)
	repo.byID["job-9"] = &models.ReportJob{ID: "job-9", Type: models.ReportTypeCourses, Status: models.ReportStatusQueued, CreatedBy: teacherOneID}

	_, err := svc.Get(context.Background(), "job-9", &models.JWTClaims{UserID: teacherTwoID, Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	job, err := svc.Get(context.Background(), "job-9", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "job-9", job.ID)
}

func TestReportOpenRejectsUnfinishedJob(t *testing.T) {
	repo, svc := newReportFixture(t)
	repo.byID["job-9"] = &models.ReportJob{ID: "job-9", Type: models.ReportTypeCourses, Status: models.ReportStatusProcessing, CreatedBy: "admin-1"}

	token, _, err := svc.signer.Generate("job-9", "reports/job-9.csv")
	require.NoError(t, err)

	_, _, err = svc.Open(context.Background(), "job-9", token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
