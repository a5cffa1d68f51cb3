package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oets-school/oets-api/internal/models"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
)

type mockCourseRepo struct {
	byID          map[string]*models.Course
	created       []*models.Course
	statusUpdates map[string]models.CourseStatus
	teacherMoves  map[string]string
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var details []models.CourseDetail
	for _, c := range m.byID {
		details = append(details, models.CourseDetail{Course: *c})
	}
	return details, len(details), nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (m *mockCourseRepo) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	c, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.CourseDetail{Course: *c}, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = "course-new"
	m.created = append(m.created, course)
	m.byID[course.ID] = course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.byID[course.ID] = course
	return nil
}

func (m *mockCourseRepo) UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error {
	if m.statusUpdates == nil {
		m.statusUpdates = make(map[string]models.CourseStatus)
	}
	m.statusUpdates[id] = status
	return nil
}

func (m *mockCourseRepo) UpdateTeacher(ctx context.Context, id, teacherID string) error {
	if _, ok := m.byID[id]; !ok {
		return sql.ErrNoRows
	}
	if m.teacherMoves == nil {
		m.teacherMoves = make(map[string]string)
	}
	m.teacherMoves[id] = teacherID
	return nil
}

type mockUserLookup struct {
	users map[string]*models.User
}

func (m *mockUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

type mockDepartmentLookup struct {
	departments map[string]*models.Department
}

func (m *mockDepartmentLookup) FindByID(ctx context.Context, id string) (*models.Department, error) {
	d, ok := m.departments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

const (
	deptID            = "f255ad88-10f2-45bc-a736-95d165f58a25"
	teacherOneID      = "660d5b26-5c0f-49d6-af48-ca56fd483d47"
	teacherTwoID      = "b0ce8f10-9348-449e-8e51-cc84c4f858f0"
	studentOneID      = "f834a576-5a9a-4621-ba4a-c9ded398ef41"
	inactiveTeacherID = "9fb64bd0-b775-4e51-b6a3-df00f0d723a9"
)

func newCourseFixture() (*mockCourseRepo, *CourseService) {
	repo := &mockCourseRepo{byID: map[string]*models.Course{
		"course-1": {ID: "course-1", DepartmentID: deptID, TeacherID: teacherOneID, Title: "Welding Basics", Status: models.CourseStatusOpen},
	}}
	users := &mockUserLookup{users: map[string]*models.User{
		teacherOneID:      {ID: teacherOneID, Role: models.RoleTeacher, Active: true},
		teacherTwoID:      {ID: teacherTwoID, Role: models.RoleTeacher, Active: true},
		studentOneID:      {ID: studentOneID, Role: models.RoleStudent, Active: true},
		inactiveTeacherID: {ID: inactiveTeacherID, Role: models.RoleTeacher, Active: false},
	}}
	departments := &mockDepartmentLookup{departments: map[string]*models.Department{
		deptID: {ID: deptID, Name: "Industrial Trades"},
	}}
	cache := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	svc := NewCourseService(repo, users, departments, cache, validator.New(), zap.NewNop())
	return repo, svc
}

func validCourseRequest() models.CreateCourseRequest {
	return models.CreateCourseRequest{
		DepartmentID:  deptID,
		Title:         "Pipefitting 101",
		StartDate:     time.Now().Add(30 * 24 * time.Hour),
		DurationWeeks: 8,
		Format:        models.CourseFormatInPerson,
		Price:         250,
	}
}

func TestCourseCreateTeacherOwnsCourse(t *testing.T) {
	repo, svc := newCourseFixture()

	req := validCourseRequest()
	req.DepartmentID = deptID
	claims := &models.JWTClaims{UserID: teacherOneID, Role: models.RoleTeacher}

	course, err := svc.Create(context.Background(), req, claims)
	require.NoError(t, err)
	assert.Equal(t, teacherOneID, course.TeacherID)
	assert.Equal(t, models.CourseStatusPending, course.Status)
	assert.Len(t, repo.created, 1)
}

func TestCourseCreateAdminRequiresTeacherID(t *testing.T) {
	_, svc := newCourseFixture()

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	_, err := svc.Create(context.Background(), validCourseRequest(), claims)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCourseCreateRejectsNonTeacherAssignee(t *testing.T) {
	_, svc := newCourseFixture()

	req := validCourseRequest()
	req.TeacherID = studentOneID
	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	_, err := svc.Create(context.Background(), req, claims)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCourseUpdateForeignTeacherForbidden(t *testing.T) {
	_, svc := newCourseFixture()

	title := "Renamed"
	claims := &models.JWTClaims{UserID: teacherTwoID, Role: models.RoleTeacher}
	_, err := svc.Update(context.Background(), "course-1", models.UpdateCourseRequest{Title: &title}, claims)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCourseArchiveInsteadOfDelete(t *testing.T) {
	repo, svc := newCourseFixture()

	claims := &models.JWTClaims{UserID: teacherOneID, Role: models.RoleTeacher}
	err := svc.Archive(context.Background(), "course-1", claims)
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusArchived, repo.statusUpdates["course-1"])
}

func TestCourseArchiveIdempotent(t *testing.T) {
	repo, svc := newCourseFixture()
	repo.byID["course-1"].Status = models.CourseStatusArchived

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	err := svc.Archive(context.Background(), "course-1", claims)
	require.NoError(t, err)
	assert.Empty(t, repo.statusUpdates)
}

func TestCourseReassignTeacher(t *testing.T) {
	repo, svc := newCourseFixture()

	err := svc.ReassignTeacher(context.Background(), "course-1", models.ReassignTeacherRequest{TeacherID: teacherTwoID})
	require.NoError(t, err)
	assert.Equal(t, teacherTwoID, repo.teacherMoves["course-1"])
}

func TestCourseReassignRejectsInactiveTeacher(t *testing.T) {
	_, svc := newCourseFixture()

	err := svc.ReassignTeacher(context.Background(), "course-1", models.ReassignTeacherRequest{TeacherID: inactiveTeacherID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
