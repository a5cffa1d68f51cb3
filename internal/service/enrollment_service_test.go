package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oets-school/oets-api/internal/models"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	byID              map[string]*models.Enrollment
	createErr         error
	created           []*models.Enrollment
	updateDecisionOK  bool
	updateDecisionErr error
	deleted           []string
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EnrollmentDetail{Enrollment: *e}, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	enrollment.ID = "enr-1"
	enrollment.EnrolledAt = time.Now().UTC()
	m.created = append(m.created, enrollment)
	return nil
}

func (m *mockEnrollmentRepo) UpdateDecision(ctx context.Context, id string, status models.EnrollmentStatus, decidedBy string, decidedAt time.Time) (bool, error) {
	if m.updateDecisionErr != nil {
		return false, m.updateDecisionErr
	}
	return m.updateDecisionOK, nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return sql.ErrNoRows
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockCourseLookup struct {
	courses map[string]*models.Course
}

func (m *mockCourseLookup) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

type mockDocumentLister struct {
	docs []models.Document
}

func (m *mockDocumentLister) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Document, error) {
	return m.docs, nil
}

type mockFileRemover struct {
	removed []string
}

func (m *mockFileRemover) Delete(filename string) error {
	m.removed = append(m.removed, filename)
	return nil
}

type mockEnqueuer struct {
	payloads []EnrollmentConfirmation
	err      error
}

func (m *mockEnqueuer) EnqueueEnrollmentConfirmation(payload EnrollmentConfirmation) error {
	m.payloads = append(m.payloads, payload)
	return m.err
}

const (
	openCourseID     = "133cf93f-10bd-4a0b-b052-0d59aa7050a8"
	archivedCourseID = "d8c7c967-c475-4b5d-b16e-e9f1cf8fa25d"
)

func newEnrollmentFixture() (*mockEnrollmentRepo, *mockCourseLookup, *mockDocumentLister, *mockFileRemover, *mockEnqueuer, *EnrollmentService) {
	repo := &mockEnrollmentRepo{byID: make(map[string]*models.Enrollment), updateDecisionOK: true}
	courses := &mockCourseLookup{courses: map[string]*models.Course{
		openCourseID:     {ID: openCourseID, TeacherID: "teacher-1", Title: "Welding Basics", Status: models.CourseStatusOpen},
		archivedCourseID: {ID: archivedCourseID, TeacherID: "teacher-1", Title: "Archived Course", Status: models.CourseStatusArchived},
	}}
	docs := &mockDocumentLister{}
	files := &mockFileRemover{}
	queue := &mockEnqueuer{}
	svc := NewEnrollmentService(repo, courses, docs, files, queue, validator.New(), zap.NewNop())
	return repo, courses, docs, files, queue, svc
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent, Email: "s@example.com", FullName: "Sam Student"}
}

func TestEnrollmentCreateEnqueuesConfirmationOnce(t *testing.T) {
	repo, _, _, _, queue, svc := newEnrollmentFixture()

	enrollment, err := svc.Create(context.Background(), models.CreateEnrollmentRequest{CourseID: openCourseID}, studentClaims())
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Equal(t, "student-1", enrollment.StudentID)
	require.Len(t, repo.created, 1)
	require.Len(t, queue.payloads, 1)
	assert.Equal(t, "enr-1", queue.payloads[0].EnrollmentID)
	assert.Equal(t, "Welding Basics", queue.payloads[0].CourseTitle)
}

func TestEnrollmentCreateQueueFailureDoesNotFailCreate(t *testing.T) {
	repo, _, _, _, queue, svc := newEnrollmentFixture()
	queue.err = errors.New("queue full")

	enrollment, err := svc.Create(context.Background(), models.CreateEnrollmentRequest{CourseID: openCourseID}, studentClaims())
	require.NoError(t, err)
	assert.NotNil(t, enrollment)
	assert.Len(t, repo.created, 1)
	assert.Len(t, queue.payloads, 1)
}

func TestEnrollmentCreateCourseNotOpen(t *testing.T) {
	_, _, _, _, queue, svc := newEnrollmentFixture()

	_, err := svc.Create(context.Background(), models.CreateEnrollmentRequest{CourseID: archivedCourseID}, studentClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Empty(t, queue.payloads)
}

func TestEnrollmentCreateCourseMissing(t *testing.T) {
	_, _, _, _, _, svc := newEnrollmentFixture()

	_, err := svc.Create(context.Background(), models.CreateEnrollmentRequest{CourseID: "ba7b2f64-8cbd-4a6f-9f49-92d4c4fbeaa1"}, studentClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollmentCreateDuplicateSurfacesConflict(t *testing.T) {
	repo, _, _, _, queue, svc := newEnrollmentFixture()
	repo.createErr = appErrors.Clone(appErrors.ErrConflict, "an active enrollment for this course already exists")

	_, err := svc.Create(context.Background(), models.CreateEnrollmentRequest{CourseID: openCourseID}, studentClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, queue.payloads)
}

func TestEnrollmentDecideApproveAsOwningTeacher(t *testing.T) {
	repo, _, _, _, _, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: openCourseID, Status: models.EnrollmentStatusPending}

	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	enrollment, err := svc.Decide(context.Background(), "enr-1", models.EnrollmentDecisionRequest{Decision: models.EnrollmentStatusApproved}, claims)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, enrollment.Status)
	require.NotNil(t, enrollment.DecidedBy)
	assert.Equal(t, "teacher-1", *enrollment.DecidedBy)
	assert.NotNil(t, enrollment.DecidedAt)
}

func TestEnrollmentDecideForeignTeacherForbidden(t *testing.T) {
	repo, _, _, _, _, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: openCourseID, Status: models.EnrollmentStatusPending}

	claims := &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher}
	_, err := svc.Decide(context.Background(), "enr-1", models.EnrollmentDecisionRequest{Decision: models.EnrollmentStatusRejected}, claims)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestEnrollmentDecideStudentForbidden(t *testing.T) {
	repo, _, _, _, _, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: openCourseID, Status: models.EnrollmentStatusPending}

	_, err := svc.Decide(context.Background(), "enr-1", models.EnrollmentDecisionRequest{Decision: models.EnrollmentStatusApproved}, studentClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestEnrollmentDecideIsTerminal(t *testing.T) {
	repo, _, _, _, _, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: openCourseID, Status: models.EnrollmentStatusRejected}

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	_, err := svc.Decide(context.Background(), "enr-1", models.EnrollmentDecisionRequest{Decision: models.EnrollmentStatusApproved}, claims)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestEnrollmentDecideConcurrentLoser(t *testing.T) {
	repo, _, _, _, _, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: openCourseID, Status: models.EnrollmentStatusPending}
	repo.updateDecisionOK = false

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	_, err := svc.Decide(context.Background(), "enr-1", models.EnrollmentDecisionRequest{Decision: models.EnrollmentStatusApproved}, claims)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestEnrollmentDeleteStudentOwnPendingRemovesFiles(t *testing.T) {
	repo, _, docs, files, _, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: openCourseID, Status: models.EnrollmentStatusPending}
	docs.docs = []models.Document{{ID: "doc-1", EnrollmentID: "enr-1", FilePath: "enrollments/enr-1/doc-1.pdf"}}

	err := svc.Delete(context.Background(), "enr-1", studentClaims())
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1"}, repo.deleted)
	assert.Equal(t, []string{"enrollments/enr-1/doc-1.pdf"}, files.removed)
}

func TestEnrollmentDeleteStudentApprovedRejected(t *testing.T) {
	repo, _, _, _, _, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: openCourseID, Status: models.EnrollmentStatusApproved}

	err := svc.Delete(context.Background(), "enr-1", studentClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Empty(t, repo.deleted)
}

func TestEnrollmentDeleteTeacherForbidden(t *testing.T) {
	repo, _, _, _, _, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: openCourseID, Status: models.EnrollmentStatusPending}

	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	err := svc.Delete(context.Background(), "enr-1", claims)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestEnrollmentDeleteAdminAny(t *testing.T) {
	repo, _, _, _, _, svc := newEnrollmentFixture()
	repo.byID["enr-1"] = &models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: openCourseID, Status: models.EnrollmentStatusApproved}

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	err := svc.Delete(context.Background(), "enr-1", claims)
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1"}, repo.deleted)
}

func TestEnrollmentListScopesStudentToSelf(t *testing.T) {
	repo := &recordingEnrollmentRepo{}
	_, courses, docs, files, queue, _ := newEnrollmentFixture()
	svc := NewEnrollmentService(repo, courses, docs, files, queue, validator.New(), zap.NewNop())

	_, _, err := svc.List(context.Background(), models.EnrollmentFilter{}, studentClaims())
	require.NoError(t, err)
	assert.Equal(t, "student-1", repo.lastFilter.StudentID)

	_, _, err = svc.List(context.Background(), models.EnrollmentFilter{}, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", repo.lastFilter.TeacherID)
}

type recordingEnrollmentRepo struct {
	mockEnrollmentRepo
	lastFilter models.EnrollmentFilter
}

func (m *recordingEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.lastFilter = filter
	return nil, 0, nil
}
