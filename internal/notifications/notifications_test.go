package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/knowledgehub/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// mockEnqueuer records enqueued tasks
type mockEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueName, Type: task.Type()}, nil
}

// mockSender records sent e-mails
type mockSender struct {
	to, subject, body string
	calls             int
	err               error
}

func (m *mockSender) Send(to, subject, body string) error {
	m.calls++
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

func TestQueueNotifier_NotifyDecision(t *testing.T) {
	event := models.DecisionEvent{ArticleID: 5, OwnerID: 7, OwnerEmail: "ana@example.com", Title: "Rice", Status: models.StatusPublished}

	t.Run("enqueues payload", func(t *testing.T) {
		client := &mockEnqueuer{}
		err := NewQueueNotifier(client, zap.NewNop()).NotifyDecision(context.Background(), event)

		require.NoError(t, err)
		require.Len(t, client.tasks, 1)
		assert.Equal(t, TypeArticleDecision, client.tasks[0].Type())

		var decoded models.DecisionEvent
		require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &decoded))
		assert.Equal(t, event, decoded)
	})

	t.Run("skips owners without e-mail", func(t *testing.T) {
		client := &mockEnqueuer{}
		noEmail := event
		noEmail.OwnerEmail = ""

		err := NewQueueNotifier(client, zap.NewNop()).NotifyDecision(context.Background(), noEmail)

		require.NoError(t, err)
		assert.Empty(t, client.tasks)
	})

	t.Run("enqueue failure", func(t *testing.T) {
		client := &mockEnqueuer{err: errors.New("redis unavailable")}
		err := NewQueueNotifier(client, zap.NewNop()).NotifyDecision(context.Background(), event)

		assert.ErrorContains(t, err, "redis unavailable")
	})
}

func TestNoopNotifier(t *testing.T) {
	assert.NoError(t, NoopNotifier{}.NotifyDecision(context.Background(), models.DecisionEvent{}))
}

func TestWorker_HandleDecision(t *testing.T) {
	payload := func(event models.DecisionEvent) []byte {
		data, err := json.Marshal(event)
		require.NoError(t, err)
		return data
	}

	tests := []struct {
		name            string
		payload         []byte
		sendErr         error
		expectedCalls   int
		expectedSubject string
		expectedError   bool
		expectSkipRetry bool
	}{
		{
			name:            "published",
			payload:         payload(models.DecisionEvent{ArticleID: 5, OwnerEmail: "ana@example.com", Title: "Rice <b>", Status: models.StatusPublished}),
			expectedCalls:   1,
			expectedSubject: `Your article "Rice <b>" was published`,
		},
		{
			name:            "rejected",
			payload:         payload(models.DecisionEvent{ArticleID: 5, OwnerEmail: "ana@example.com", Title: "Rice", Status: models.StatusRejected}),
			expectedCalls:   1,
			expectedSubject: `Your article "Rice" was not approved`,
		},
		{
			name:          "no recipient",
			payload:       payload(models.DecisionEvent{ArticleID: 5, Title: "Rice", Status: models.StatusPublished}),
			expectedCalls: 0,
		},
		{
			name:            "malformed payload",
			payload:         []byte("not json"),
			expectedError:   true,
			expectSkipRetry: true,
		},
		{
			name:            "unexpected status",
			payload:         payload(models.DecisionEvent{ArticleID: 5, OwnerEmail: "ana@example.com", Status: models.StatusPending}),
			expectedError:   true,
			expectSkipRetry: true,
		},
		{
			name:          "smtp failure is retried",
			payload:       payload(models.DecisionEvent{ArticleID: 5, OwnerEmail: "ana@example.com", Title: "Rice", Status: models.StatusPublished}),
			sendErr:       errors.New("connection refused"),
			expectedCalls: 1,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{err: tt.sendErr}
			worker := NewWorker(sender, zap.NewNop())

			err := worker.HandleDecision(context.Background(), asynq.NewTask(TypeArticleDecision, tt.payload))

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.expectSkipRetry, errors.Is(err, asynq.SkipRetry))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedCalls, sender.calls)
			if tt.expectedSubject != "" {
				assert.Equal(t, tt.expectedSubject, sender.subject)
				assert.Equal(t, "ana@example.com", sender.to)
				assert.NotContains(t, sender.body, "<b>")
			}
		})
	}
}

func TestWorker_HandleDecision_LogsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	worker := NewWorker(&mockSender{}, zap.New(core))
	event := models.DecisionEvent{ArticleID: 5, OwnerEmail: "ana@example.com", Title: "Rice", Status: models.StatusPublished, RequestID: "req-9"}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, worker.HandleDecision(context.Background(), asynq.NewTask(TypeArticleDecision, data)))

	entries := logs.FilterMessage("decision e-mail sent").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
	}
}

func TestSMTPSender_newMessage(t *testing.T) {
	sender := NewSMTPSender("smtp.example.com", 587, "user", "pass", "noreply@example.com")

	m := sender.newMessage("ana@example.com", "Subject", "<p>Body</p>")

	assert.Equal(t, []string{"noreply@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"ana@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Subject"}, m.GetHeader("Subject"))
}

func TestWorker_RegisterHandlers(t *testing.T) {
	mux := asynq.NewServeMux()
	NewWorker(&mockSender{}, zap.NewNop()).RegisterHandlers(mux)

	handler, pattern := mux.Handler(asynq.NewTask(TypeArticleDecision, nil))
	assert.NotNil(t, handler)
	assert.Equal(t, TypeArticleDecision, pattern)
}
