// Package gallery is the public, read-only view of published articles.
package gallery

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/models"
	"go.uber.org/zap"
)

// Service lists published articles
type Service interface {
	ListPublished(ctx context.Context) ([]models.Article, error)
}

// SortOrder orders the gallery
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
	SortTitle  SortOrder = "title"
)

// KeyEscape closes the detail overlay
const KeyEscape = "Escape"

// Stats are derived from the published set and never stored
type Stats struct {
	Total        int
	LatestTitle  string
	Contributors int
}

// Gallery holds the published articles and the overlay selection
type Gallery struct {
	mu      sync.Mutex
	service Service
	logger  *zap.Logger

	items    []models.Article
	search   string
	order    SortOrder
	selected *models.Article
	disposed bool
}

// New creates an empty gallery sorted newest first
func New(svc Service, logger *zap.Logger) *Gallery {
	return &Gallery{
		service: svc,
		logger:  logger,
		order:   SortNewest,
	}
}

// Refresh reloads the published articles. Anything not published is dropped.
func (g *Gallery) Refresh(ctx context.Context) error {
	articles, err := g.service.ListPublished(ctx)
	if err != nil {
		g.logger.Warn("failed to load gallery", zap.Error(err))
		return err
	}

	published := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if a.Status == models.StatusPublished {
			published = append(published, a)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return nil
	}
	g.items = published
	if g.selected != nil && !g.contains(g.selected.ID) {
		g.selected = nil
	}
	return nil
}

// SetSearch sets the free-text filter over title, description and author
func (g *Gallery) SetSearch(query string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.search = query
}

// SetSort changes the order
func (g *Gallery) SetSort(order SortOrder) error {
	switch order {
	case SortNewest, SortOldest, SortTitle:
	default:
		return apperrors.Validation("gallery.SetSort", "unknown sort order")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.order = order
	return nil
}

// Items returns the published articles matching the search, in the current order
func (g *Gallery) Items() []models.Article {
	g.mu.Lock()
	defer g.mu.Unlock()

	items := make([]models.Article, 0, len(g.items))
	for _, a := range g.items {
		if a.Matches(g.search) {
			items = append(items, a)
		}
	}

	var less func(a, b models.Article) bool
	switch g.order {
	case SortOldest:
		less = func(a, b models.Article) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortTitle:
		less = func(a, b models.Article) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	default:
		less = func(a, b models.Article) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	return items
}

// Stats summarizes every published article regardless of the search
func (g *Gallery) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := Stats{Total: len(g.items)}
	contributors := make(map[string]struct{})
	var latest *models.Article
	for i := range g.items {
		a := &g.items[i]
		if name := strings.TrimSpace(a.OwnerDisplayName); name != "" {
			contributors[name] = struct{}{}
		}
		if latest == nil || a.UpdatedAt.After(latest.UpdatedAt) {
			latest = a
		}
	}
	if latest != nil {
		stats.LatestTitle = latest.Title
	}
	stats.Contributors = len(contributors)
	return stats
}

// Open shows the detail overlay for id
func (g *Gallery) Open(id int) (*models.Article, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.items {
		if g.items[i].ID == id {
			article := g.items[i]
			g.selected = &article
			return &article, nil
		}
	}
	return nil, apperrors.NotFound("gallery.Open", "article not found")
}

// Selected returns the article in the overlay, or nil
func (g *Gallery) Selected() *models.Article {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.selected == nil {
		return nil
	}
	article := *g.selected
	return &article
}

// Close hides the detail overlay
func (g *Gallery) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selected = nil
}

// HandleKey closes the overlay on KeyEscape and reports whether the key was consumed
func (g *Gallery) HandleKey(key string) bool {
	if key != KeyEscape {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.selected == nil {
		return false
	}
	g.selected = nil
	return true
}

// Dispose tears the gallery down; later refresh results are ignored
func (g *Gallery) Dispose() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disposed = true
	g.selected = nil
}

// contains reports whether id is loaded. Callers hold g.mu.
func (g *Gallery) contains(id int) bool {
	for _, a := range g.items {
		if a.ID == id {
			return true
		}
	}
	return false
}
