package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/hibiken/asynq"
	"github.com/knowledgehub/backend/internal/logger"
	"github.com/knowledgehub/backend/internal/models"
	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

// Sender delivers one e-mail
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends e-mails using gopkg.in/mail.v2
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPSender creates an SMTP sender
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *SMTPSender) newMessage(to, subject, body string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

// Send dials the SMTP server and sends the message
func (s *SMTPSender) Send(to, subject, body string) error {
	d := mail.NewDialer(s.host, s.port, s.username, s.password)
	if err := d.DialAndSend(s.newMessage(to, subject, body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Worker handles decision tasks
type Worker struct {
	sender Sender
	logger *zap.Logger
}

// NewWorker creates a new worker instance
func NewWorker(sender Sender, logger *zap.Logger) *Worker {
	return &Worker{
		sender: sender,
		logger: logger,
	}
}

// RegisterHandlers registers the worker's task handlers on mux
func (w *Worker) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeArticleDecision, w.HandleDecision)
}

// HandleDecision e-mails the owner of a decided article
func (w *Worker) HandleDecision(ctx context.Context, t *asynq.Task) error {
	var event models.DecisionEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		// A malformed payload will never succeed
		return fmt.Errorf("failed to parse decision payload: %v: %w", err, asynq.SkipRetry)
	}

	log := logger.FromContext(logger.WithRequestID(ctx, event.RequestID), w.logger)

	if event.OwnerEmail == "" {
		log.Debug("decision without recipient", zap.Int("article_id", event.ArticleID))
		return nil
	}

	subject, body, err := renderDecision(event)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := w.sender.Send(event.OwnerEmail, subject, body); err != nil {
		log.Warn("failed to send decision e-mail", zap.Int("article_id", event.ArticleID), zap.Error(err))
		return err
	}

	log.Info("decision e-mail sent",
		zap.Int("article_id", event.ArticleID),
		zap.String("status", string(event.Status)),
	)
	return nil
}

// renderDecision builds the subject and HTML body for a decision
func renderDecision(event models.DecisionEvent) (string, string, error) {
	title := html.EscapeString(event.Title)

	switch event.Status {
	case models.StatusPublished:
		return fmt.Sprintf("Your article %q was published", event.Title),
			fmt.Sprintf("<p>Good news! Your article <strong>%s</strong> has been approved and is now visible in the gallery.</p>", title),
			nil
	case models.StatusRejected:
		return fmt.Sprintf("Your article %q was not approved", event.Title),
			fmt.Sprintf("<p>Your article <strong>%s</strong> was reviewed and not approved for publication.</p>", title),
			nil
	default:
		return "", "", fmt.Errorf("unexpected decision status %q", event.Status)
	}
}
