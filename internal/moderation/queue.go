// Package moderation lists articles for review and applies publish/reject decisions.
//
// The local list is a cache keyed by article id. Refreshes merge into it by
// updatedAt, so a stale response never overwrites a newer decision.
package moderation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/client"
	"github.com/knowledgehub/backend/internal/models"
	"github.com/knowledgehub/backend/internal/session"
	"go.uber.org/zap"
)

// Service reads articles and records decisions
type Service interface {
	List(ctx context.Context, q client.ListQuery) ([]models.Article, error)
	Decide(ctx context.Context, id int, status models.Status) (*models.MutationResponse, error)
}

// Queue is a reviewer's view of the moderation backlog
type Queue struct {
	mu      sync.Mutex
	service Service
	session *session.Session
	logger  *zap.Logger
	now     func() time.Time

	items    map[int]models.Article
	search   string
	status   string
	inFlight map[int]bool
	closed   bool
}

// New creates a queue filtered to pending articles
func New(svc Service, sess *session.Session, logger *zap.Logger) *Queue {
	return &Queue{
		service:  svc,
		session:  sess,
		logger:   logger,
		now:      time.Now,
		items:    make(map[int]models.Article),
		status:   string(models.StatusPending),
		inFlight: make(map[int]bool),
	}
}

// Refresh fetches every article and merges it into the cache.
// A cached entry with a later updatedAt is kept over the fetched one.
func (q *Queue) Refresh(ctx context.Context) error {
	if err := q.authorize("moderation.Refresh"); err != nil {
		return err
	}

	articles, err := q.service.List(ctx, client.ListQuery{})
	if err != nil {
		q.logger.Warn("failed to refresh moderation queue", zap.Error(err))
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Debug("queue closed, discarding refresh")
		return nil
	}

	merged := make(map[int]models.Article, len(articles))
	for _, fetched := range articles {
		if cached, ok := q.items[fetched.ID]; ok && cached.UpdatedAt.After(fetched.UpdatedAt) {
			merged[fetched.ID] = cached
			continue
		}
		merged[fetched.ID] = fetched
	}
	q.items = merged
	return nil
}

// SetSearch sets the free-text filter over title, description and requester name
func (q *Queue) SetSearch(query string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.search = query
}

// SetStatusFilter sets the exact status filter. models.FilterAll disables it.
func (q *Queue) SetStatusFilter(status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != models.FilterAll && !models.Status(status).IsValid() {
		return apperrors.Validation("moderation.SetStatusFilter", "unknown status filter")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.status = status
	return nil
}

// StatusFilter returns the active status filter
func (q *Queue) StatusFilter() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status
}

// Items returns the filtered articles, oldest first so the backlog is worked in order
func (q *Queue) Items() []models.Article {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]models.Article, 0, len(q.items))
	for _, a := range q.items {
		if q.status != models.FilterAll && string(a.Status) != q.status {
			continue
		}
		if !a.Matches(q.search) {
			continue
		}
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// Item returns one cached article
func (q *Queue) Item(id int) (models.Article, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.items[id]
	return a, ok
}

// Busy reports whether a decision on id is in flight
func (q *Queue) Busy(id int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight[id]
}

// Approve moves a pending article to published
func (q *Queue) Approve(ctx context.Context, id int) (*models.MutationResponse, error) {
	return q.decide(ctx, "moderation.Approve", id, models.StatusPublished)
}

// Reject moves a pending article to rejected
func (q *Queue) Reject(ctx context.Context, id int) (*models.MutationResponse, error) {
	return q.decide(ctx, "moderation.Reject", id, models.StatusRejected)
}

func (q *Queue) decide(ctx context.Context, op string, id int, next models.Status) (*models.MutationResponse, error) {
	if err := q.authorize(op); err != nil {
		return nil, err
	}

	q.mu.Lock()
	if q.inFlight[id] {
		q.mu.Unlock()
		return nil, apperrors.Validation(op, "decision already in progress")
	}
	if cached, ok := q.items[id]; ok && cached.Status != models.StatusPending {
		q.mu.Unlock()
		return nil, apperrors.Conflict(op, "article has already been decided")
	}
	q.inFlight[id] = true
	q.mu.Unlock()

	resp, err := q.service.Decide(ctx, id, next)

	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, id)

	if err != nil {
		q.logger.Warn("decision failed", zap.Int("article_id", id), zap.String("status", string(next)), zap.Error(err))
		return nil, err
	}
	if q.closed {
		return resp, nil
	}

	q.patch(id, next, resp)
	q.logger.Info("decision applied", zap.Int("article_id", id), zap.String("status", string(next)))
	return resp, nil
}

// patch applies a successful decision locally. Callers hold q.mu.
//
// The server's updatedAt is kept when the response carries the article, so a
// client clock running ahead cannot mask later server changes. The local clock
// only stamps a cached entry the response did not include.
func (q *Queue) patch(id int, next models.Status, resp *models.MutationResponse) {
	if resp != nil && resp.Data != nil && !resp.Data.UpdatedAt.IsZero() {
		article := *resp.Data
		article.Status = next
		q.items[id] = article
		return
	}

	article, ok := q.items[id]
	if resp != nil && resp.Data != nil {
		article, ok = *resp.Data, true
	}
	if !ok {
		return
	}

	article.Status = next
	if now := q.now(); now.After(article.UpdatedAt) {
		article.UpdatedAt = now
	}
	q.items[id] = article
}

// authorize requires a session whose role may moderate
func (q *Queue) authorize(op string) error {
	if !q.session.Authenticated() {
		return apperrors.Authentication(op, "please sign in to review requests")
	}
	if !q.session.CanModerate() {
		return apperrors.Permission(op, "insufficient permissions")
	}
	return nil
}

// Close tears the queue down; results settling later are ignored
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
