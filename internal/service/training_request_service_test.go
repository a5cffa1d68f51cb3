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

type mockTrainingRepo struct {
	byID      map[string]*models.TrainingRequest
	created   []*models.TrainingRequest
	updatedOK bool
}

func (m *mockTrainingRepo) List(ctx context.Context, status models.TrainingRequestStatus, page, pageSize int) ([]models.TrainingRequest, int, error) {
	var requests []models.TrainingRequest
	for _, r := range m.byID {
		if status == "" || r.Status == status {
			requests = append(requests, *r)
		}
	}
	return requests, len(requests), nil
}

func (m *mockTrainingRepo) FindByID(ctx context.Context, id string) (*models.TrainingRequest, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func (m *mockTrainingRepo) Create(ctx context.Context, request *models.TrainingRequest) error {
	request.ID = "tr-1"
	request.RequestedAt = time.Now().UTC()
	m.created = append(m.created, request)
	return nil
}

func (m *mockTrainingRepo) UpdateStatus(ctx context.Context, id string, status models.TrainingRequestStatus, processedAt time.Time) (bool, error) {
	return m.updatedOK, nil
}

func newTrainingFixture() (*mockTrainingRepo, *TrainingRequestService) {
	repo := &mockTrainingRepo{byID: make(map[string]*models.TrainingRequest), updatedOK: true}
	svc := NewTrainingRequestService(repo, validator.New(), zap.NewNop())
	return repo, svc
}

func TestTrainingRequestCreateIndividual(t *testing.T) {
	repo, svc := newTrainingFixture()

	req := models.CreateTrainingRequest{RequestType: models.TrainingRequestIndividual, NeedsDescription: "conversational English"}
	request, err := svc.Create(context.Background(), req, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TrainingRequestPending, request.Status)
	assert.Equal(t, "user-1", request.UserID)
	require.Len(t, repo.created, 1)
}

func TestTrainingRequestGroupRequiresOrganization(t *testing.T) {
	_, svc := newTrainingFixture()

	req := models.CreateTrainingRequest{RequestType: models.TrainingRequestGroup, NeedsDescription: "team onboarding"}
	_, err := svc.Create(context.Background(), req, "user-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	req.OrganizationName = "Acme Corp"
	request, err := svc.Create(context.Background(), req, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", request.OrganizationName)
}

func TestTrainingRequestUpdateStatusIsTerminal(t *testing.T) {
	repo, svc := newTrainingFixture()
	repo.byID["tr-1"] = &models.TrainingRequest{ID: "tr-1", UserID: "user-1", Status: models.TrainingRequestProcessed}

	_, err := svc.UpdateStatus(context.Background(), "tr-1", models.TrainingRequestStatusUpdate{Status: models.TrainingRequestRejected})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestTrainingRequestUpdateStatusConcurrentLoser(t *testing.T) {
	repo, svc := newTrainingFixture()
	repo.byID["tr-1"] = &models.TrainingRequest{ID: "tr-1", UserID: "user-1", Status: models.TrainingRequestPending}
	repo.updatedOK = false

	_, err := svc.UpdateStatus(context.Background(), "tr-1", models.TrainingRequestStatusUpdate{Status: models.TrainingRequestProcessed})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestTrainingRequestUpdateStatusProcessed(t *testing.T) {
	repo, svc := newTrainingFixture()
	repo.byID["tr-1"] = &models.TrainingRequest{ID: "tr-1", UserID: "user-1", Status: models.TrainingRequestPending}

	request, err := svc.UpdateStatus(context.Background(), "tr-1", models.TrainingRequestStatusUpdate{Status: models.TrainingRequestProcessed})
	require.NoError(t, err)
	assert.Equal(t, models.TrainingRequestProcessed, request.Status)
	require.NotNil(t, request.ProcessedAt)
}

func TestTrainingRequestListRejectsUnknownStatus(t *testing.T) {
	_, svc := newTrainingFixture()

	_, _, err := svc.List(context.Background(), "UNKNOWN", 1, 20)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
