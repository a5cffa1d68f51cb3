package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oets-school/oets-api/internal/models"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
)

type mockPageRepo struct {
	bySlug    map[string]*models.Page
	byID      map[string]*models.Page
	createErr error
	created   []*models.Page
}

func (m *mockPageRepo) List(ctx context.Context, visibleOnly bool) ([]models.Page, error) {
	var pages []models.Page
	for _, p := range m.bySlug {
		if visibleOnly && !p.Visible {
			continue
		}
		pages = append(pages, *p)
	}
	return pages, nil
}

func (m *mockPageRepo) FindBySlug(ctx context.Context, slug string) (*models.Page, error) {
	p, ok := m.bySlug[slug]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (m *mockPageRepo) FindByID(ctx context.Context, id string) (*models.Page, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (m *mockPageRepo) Create(ctx context.Context, page *models.Page) error {
	if m.createErr != nil {
		return m.createErr
	}
	page.ID = "page-new"
	m.created = append(m.created, page)
	return nil
}

func (m *mockPageRepo) Update(ctx context.Context, page *models.Page) error {
	m.byID[page.ID] = page
	return nil
}

func (m *mockPageRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.byID, id)
	return nil
}

func newPageFixture() (*mockPageRepo, *PageService) {
	repo := &mockPageRepo{bySlug: make(map[string]*models.Page), byID: make(map[string]*models.Page)}
	svc := NewPageService(repo, validator.New(), zap.NewNop())
	return repo, svc
}

func TestPageCreateDefaultsToVisible(t *testing.T) {
	repo, svc := newPageFixture()

	page, err := svc.Create(context.Background(), models.CreatePageRequest{Title: "About", Slug: "about", HTMLContent: "<p>hi</p>"})
	require.NoError(t, err)
	assert.True(t, page.Visible)
	require.Len(t, repo.created, 1)
}

func TestPageCreateSlugConflict(t *testing.T) {
	repo, svc := newPageFixture()
	repo.createErr = appErrors.Clone(appErrors.ErrConflict, "a page with this slug already exists")

	_, err := svc.Create(context.Background(), models.CreatePageRequest{Title: "About", Slug: "about", HTMLContent: "<p>hi</p>"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPageGetBySlugHidesInvisiblePages(t *testing.T) {
	repo, svc := newPageFixture()
	repo.bySlug["drafts"] = &models.Page{ID: "p1", Title: "Drafts", Slug: "drafts", Visible: false}

	_, err := svc.GetBySlug(context.Background(), "drafts", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	page, err := svc.GetBySlug(context.Background(), "drafts", true)
	require.NoError(t, err)
	assert.Equal(t, "p1", page.ID)
}

func TestPageListFiltersHiddenForPublic(t *testing.T) {
	repo, svc := newPageFixture()
	repo.bySlug["about"] = &models.Page{ID: "p1", Slug: "about", Visible: true}
	repo.bySlug["drafts"] = &models.Page{ID: "p2", Slug: "drafts", Visible: false}

	pages, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, pages, 1)

	pages, err = svc.List(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestPageUpdateTogglesVisibility(t *testing.T) {
	repo, svc := newPageFixture()
	repo.byID["p1"] = &models.Page{ID: "p1", Title: "About", Slug: "about", Visible: true}

	hidden := false
	page, err := svc.Update(context.Background(), "p1", models.UpdatePageRequest{Visible: &hidden})
	require.NoError(t, err)
	assert.False(t, page.Visible)
}
