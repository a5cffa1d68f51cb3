package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oets-school/oets-api/internal/models"
)

func TestEnrollmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "motivation", "status", "enrolled_at", "decided_at", "decided_by"}).
		AddRow("enr-1", "stu-1", "course-1", "", string(models.EnrollmentStatusPending), time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_id, motivation, status, enrolled_at, decided_at, decided_by FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByID(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_enrollments_active"})

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "stu-1", CourseID: "course-1"})
	require.Error(t, err)
	assert.Equal(t, ErrDuplicateEnrollment, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateDecisionConcurrentLoser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1 AND status = $5")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.UpdateDecision(context.Background(), "enr-1", models.EnrollmentStatusApproved, "teacher-1", time.Now())
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListFiltersByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "motivation", "status", "enrolled_at", "decided_at", "decided_by", "student_name", "student_email", "course_title"}).
		AddRow("enr-1", "stu-1", "course-1", "", string(models.EnrollmentStatusPending), time.Now(), nil, nil, "Sam Student", "s@example.com", "Welding Basics")
	mock.ExpectQuery("SELECT e.id, e.student_id, e.course_id").
		WithArgs("stu-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Welding Basics", enrollments[0].CourseTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}
