package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oets-school/oets-api/internal/models"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
)

func TestDepartmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "language", "description", "created_at", "updated_at"}).
		AddRow("d1", "English", "en", "", now, now).
		AddRow("d2", "Industrial Trades", "en", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, language, description, created_at, updated_at FROM departments ORDER BY name")).
		WillReturnRows(rows)

	departments, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, departments, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryCreateDuplicateName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectExec("INSERT INTO departments").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Department{Name: "English"})
	require.Error(t, err)
	assert.Equal(t, ErrDuplicateDepartment, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryDeleteBlockedByCourses(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM departments WHERE id = $1")).
		WithArgs("d1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "courses_department_id_fkey"})

	err := repo.Delete(context.Background(), "d1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
