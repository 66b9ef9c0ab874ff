package gallery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockService returns a fixed listing
type mockService struct {
	articles []models.Article
	err      error
	during   func()
}

func (m *mockService) ListPublished(ctx context.Context) ([]models.Article, error) {
	if m.during != nil {
		m.during()
	}
	return m.articles, m.err
}

var base = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

func fixtures() []models.Article {
	return []models.Article{
		{ID: 1, Title: "mulching", Description: "Straw layers", OwnerDisplayName: "Ana", Status: models.StatusPublished, CreatedAt: base, UpdatedAt: base.Add(5 * time.Hour)},
		{ID: 2, Title: "Beekeeping", Description: "Hive care", OwnerDisplayName: "Ben", Status: models.StatusPublished, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
		{ID: 3, Title: "Contour Plowing", Description: "Erosion control", OwnerDisplayName: "Ana", Status: models.StatusPublished, CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour)},
		{ID: 4, Title: "Draft Notes", Description: "Not ready", OwnerDisplayName: "Cy", Status: models.StatusPending, CreatedAt: base.Add(3 * time.Hour), UpdatedAt: base.Add(9 * time.Hour)},
	}
}

func ids(articles []models.Article) []int {
	result := make([]int, 0, len(articles))
	for _, a := range articles {
		result = append(result, a.ID)
	}
	return result
}

func loaded(t *testing.T) *Gallery {
	t.Helper()
	g := New(&mockService{articles: fixtures()}, zap.NewNop())
	require.NoError(t, g.Refresh(context.Background()))
	return g
}

func TestGallery_OnlyPublished(t *testing.T) {
	g := loaded(t)

	for _, a := range g.Items() {
		assert.Equal(t, models.StatusPublished, a.Status)
	}
	assert.NotContains(t, ids(g.Items()), 4)
}

func TestGallery_Sort(t *testing.T) {
	tests := []struct {
		order    SortOrder
		expected []int
	}{
		{order: SortNewest, expected: []int{3, 2, 1}},
		{order: SortOldest, expected: []int{1, 2, 3}},
		{order: SortTitle, expected: []int{2, 3, 1}},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			g := loaded(t)
			require.NoError(t, g.SetSort(tt.order))
			assert.Equal(t, tt.expected, ids(g.Items()))
		})
	}

	g := loaded(t)
	assert.True(t, errors.Is(g.SetSort("popular"), apperrors.ErrValidation))
}

func TestGallery_Search(t *testing.T) {
	g := loaded(t)

	g.SetSearch("ana")
	assert.Equal(t, []int{3, 1}, ids(g.Items()))

	g.SetSearch("HIVE")
	assert.Equal(t, []int{2}, ids(g.Items()))

	g.SetSearch("not ready")
	assert.Empty(t, g.Items())
}

func TestGallery_Stats(t *testing.T) {
	g := loaded(t)
	g.SetSearch("beekeeping")

	stats := g.Stats()

	assert.Equal(t, Stats{Total: 3, LatestTitle: "mulching", Contributors: 2}, stats)
	assert.Equal(t, Stats{}, New(&mockService{}, zap.NewNop()).Stats())
}

func TestGallery_Overlay(t *testing.T) {
	g := loaded(t)

	article, err := g.Open(2)
	require.NoError(t, err)
	assert.Equal(t, "Beekeeping", article.Title)
	assert.Equal(t, 2, g.Selected().ID)

	assert.False(t, g.HandleKey("Enter"))
	assert.NotNil(t, g.Selected())

	assert.True(t, g.HandleKey(KeyEscape))
	assert.Nil(t, g.Selected())
	assert.False(t, g.HandleKey(KeyEscape))

	_, err = g.Open(2)
	require.NoError(t, err)
	g.Close()
	assert.Nil(t, g.Selected())

	_, err = g.Open(4)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestGallery_OverlayDoesNotMutate(t *testing.T) {
	g := loaded(t)

	article, err := g.Open(1)
	require.NoError(t, err)
	article.Title = "changed"

	assert.Equal(t, "mulching", g.Selected().Title)
	assert.Equal(t, "mulching", g.Items()[2].Title)
}

func TestGallery_RefreshError(t *testing.T) {
	svc := &mockService{err: apperrors.Transport("client.List", "unable to reach the server", errors.New("dial"))}
	g := New(svc, zap.NewNop())

	err := g.Refresh(context.Background())

	assert.True(t, errors.Is(err, apperrors.ErrTransport))
	assert.Empty(t, g.Items())
}

func TestGallery_RefreshAfterDisposeIsDiscarded(t *testing.T) {
	svc := &mockService{articles: fixtures()}
	g := New(svc, zap.NewNop())
	svc.during = g.Dispose

	require.NoError(t, g.Refresh(context.Background()))

	assert.Empty(t, g.Items())
}
