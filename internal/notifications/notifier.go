// Package notifications delivers moderation decisions to article owners.
//
// The API enqueues a task per decision; the worker renders and e-mails it.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/knowledgehub/backend/internal/logger"
	"github.com/knowledgehub/backend/internal/models"
	"go.uber.org/zap"
)

const (
	// TypeArticleDecision is the asynq task type for decision e-mails
	TypeArticleDecision = "article:decision"

	// QueueName is the asynq queue decision tasks are enqueued on
	QueueName = "notifications"

	maxRetry = 5
)

// Enqueuer is implemented by *asynq.Client
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier enqueues decision tasks for the worker
type QueueNotifier struct {
	client Enqueuer
	logger *zap.Logger
}

// NewQueueNotifier creates a notifier backed by an asynq client
func NewQueueNotifier(client Enqueuer, logger *zap.Logger) *QueueNotifier {
	return &QueueNotifier{
		client: client,
		logger: logger,
	}
}

// NotifyDecision enqueues an e-mail for the owner of a decided article.
// Owners without an e-mail address are skipped.
func (n *QueueNotifier) NotifyDecision(ctx context.Context, event models.DecisionEvent) error {
	log := logger.FromContext(ctx, n.logger)
	if event.OwnerEmail == "" {
		log.Debug("owner has no e-mail, skipping decision notification", zap.Int("article_id", event.ArticleID))
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal decision event: %w", err)
	}

	task := asynq.NewTask(TypeArticleDecision, payload)
	info, err := n.client.EnqueueContext(ctx, task, asynq.Queue(QueueName), asynq.MaxRetry(maxRetry))
	if err != nil {
		return fmt.Errorf("failed to enqueue decision notification: %w", err)
	}

	log.Info("decision notification enqueued",
		zap.Int("article_id", event.ArticleID),
		zap.String("task_id", info.ID),
	)
	return nil
}

// NoopNotifier discards decisions. Used when notifications are disabled.
type NoopNotifier struct{}

// NotifyDecision does nothing
func (NoopNotifier) NotifyDecision(ctx context.Context, event models.DecisionEvent) error {
	return nil
}
