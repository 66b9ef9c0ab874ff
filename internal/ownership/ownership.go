// Package ownership shows a caller the articles they own.
//
// The view is default-deny: without a resolvable caller nothing is listed.
package ownership

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/client"
	"github.com/knowledgehub/backend/internal/models"
	"github.com/knowledgehub/backend/internal/session"
	"go.uber.org/zap"
)

// Service reads articles
type Service interface {
	List(ctx context.Context, q client.ListQuery) ([]models.Article, error)
	Get(ctx context.Context, id int) (*models.Article, error)
}

// NavState is carried by a navigation into the view
type NavState struct {
	ArticleID int
	Message   string
}

// Locator holds the places a focused article id may come from
type Locator struct {
	RouteID string
	Nav     *NavState
	QueryID string
}

// FocusedID resolves the focused id from the route, then the navigation
// state, then the query. ok is false in collection mode.
func (l Locator) FocusedID() (id int, ok bool, err error) {
	if raw := strings.TrimSpace(l.RouteID); raw != "" {
		return parseID(raw)
	}
	if l.Nav != nil && l.Nav.ArticleID > 0 {
		return l.Nav.ArticleID, true, nil
	}
	if raw := strings.TrimSpace(l.QueryID); raw != "" {
		return parseID(raw)
	}
	return 0, false, nil
}

func parseID(raw string) (int, bool, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false, apperrors.Validation("ownership.FocusedID", "invalid article id")
	}
	return id, true, nil
}

// Mode is the display mode of the view
type Mode int

const (
	ModeCollection Mode = iota
	ModeFocused
)

// View lists the caller's articles or focuses on one of them
type View struct {
	mu      sync.Mutex
	service Service
	session *session.Session
	logger  *zap.Logger

	mode    Mode
	items   []models.Article
	focused *models.Article
	search  string
	status  string
	flash   string
	closed  bool
}

// New creates an empty view
func New(svc Service, sess *session.Session, logger *zap.Logger) *View {
	return &View{
		service: svc,
		session: sess,
		logger:  logger,
		status:  models.FilterAll,
	}
}

// Load fetches the caller's articles, or the single article named by loc.
// Results that settle after Close are discarded.
func (v *View) Load(ctx context.Context, loc Locator) error {
	const op = "ownership.Load"

	if loc.Nav != nil && loc.Nav.Message != "" {
		v.mu.Lock()
		v.flash = loc.Nav.Message
		v.mu.Unlock()
	}

	if !v.session.Authenticated() {
		v.reset(ModeCollection)
		return apperrors.Authentication(op, "please sign in to view your requests")
	}
	callerID := v.session.CallerID()

	id, focused, err := loc.FocusedID()
	if err != nil {
		v.reset(ModeFocused)
		return err
	}

	if focused {
		return v.loadFocused(ctx, op, callerID, id)
	}

	articles, err := v.service.List(ctx, client.ListQuery{OwnerID: callerID})
	if err != nil {
		return err
	}

	owned := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if a.OwnerID == callerID {
			owned = append(owned, a)
		}
	}
	if dropped := len(articles) - len(owned); dropped > 0 {
		v.logger.Warn("listing contained articles of other owners", zap.Int("dropped", dropped))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.mode = ModeCollection
	v.items = owned
	v.focused = nil
	return nil
}

func (v *View) loadFocused(ctx context.Context, op string, callerID, id int) error {
	article, err := v.service.Get(ctx, id)
	if err != nil {
		v.reset(ModeFocused)
		return err
	}
	if article.OwnerID != callerID {
		v.reset(ModeFocused)
		v.logger.Warn("focused article belongs to another owner", zap.Int("article_id", id))
		return apperrors.Permission(op, "you can only view your own requests")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.mode = ModeFocused
	v.items = nil
	v.focused = article
	return nil
}

// reset empties the view
func (v *View) reset(mode Mode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.mode = mode
	v.items = nil
	v.focused = nil
}

// Mode returns the current display mode
func (v *View) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// Focused returns the focused article, or nil
func (v *View) Focused() *models.Article {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.focused == nil {
		return nil
	}
	article := *v.focused
	return &article
}

// SetSearch sets the free-text filter
func (v *View) SetSearch(query string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.search = query
}

// SetStatusFilter sets the status filter. FilterAll disables it.
func (v *View) SetStatusFilter(status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != models.FilterAll && !models.Status(status).IsValid() {
		return apperrors.Validation("ownership.SetStatusFilter", "unknown status filter")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = status
	return nil
}

// Items returns the collection filtered by search and status, newest first
func (v *View) Items() []models.Article {
	v.mu.Lock()
	defer v.mu.Unlock()

	items := make([]models.Article, 0, len(v.items))
	for _, a := range v.items {
		if v.status != models.FilterAll && string(a.Status) != v.status {
			continue
		}
		if !a.Matches(v.search) {
			continue
		}
		items = append(items, a)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

// Flash returns the transient message carried into the view
func (v *View) Flash() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flash
}

// DismissFlash clears the transient message
func (v *View) DismissFlash() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flash = ""
}

// Close tears the view down; later fetch results are ignored
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}
