// Package composer builds and submits new knowledge articles.
package composer

import (
	"context"
	"strings"
	"sync"

	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/attachments"
	"github.com/knowledgehub/backend/internal/client"
	"github.com/knowledgehub/backend/internal/models"
	"github.com/knowledgehub/backend/internal/session"
	"go.uber.org/zap"
)

// Submitter sends a new article to the Repository Service
type Submitter interface {
	Submit(ctx context.Context, p client.SubmitPayload) (*models.MutationResponse, error)
}

// Form is a snapshot of the composer state
type Form struct {
	Title            string
	Description      string
	Cover            *attachments.Staged
	SupportingImages []*attachments.Staged
}

var errBusy = apperrors.Validation("composer", "submission already in progress")

// Composer holds one draft submission. It owns every preview it stages.
type Composer struct {
	mu          sync.Mutex
	submitter   Submitter
	session     *session.Session
	attachments *attachments.Manager
	logger      *zap.Logger

	form    Form
	busy    bool
	message string
}

// New creates an empty composer
func New(submitter Submitter, sess *session.Session, manager *attachments.Manager, logger *zap.Logger) *Composer {
	return &Composer{
		submitter:   submitter,
		session:     sess,
		attachments: manager,
		logger:      logger,
	}
}

// SetTitle updates the title
func (c *Composer) SetTitle(title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return errBusy
	}
	c.form.Title = title
	return nil
}

// SetDescription updates the description
func (c *Composer) SetDescription(description string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return errBusy
	}
	c.form.Description = description
	return nil
}

// SetCover stages file as the cover, releasing the previous one
func (c *Composer) SetCover(file *models.ImageUpload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return errBusy
	}

	staged, err := c.attachments.Replace(c.form.Cover, file)
	if err != nil {
		return err
	}
	c.form.Cover = staged
	return nil
}

// AddSupportingImage stages file and appends it
func (c *Composer) AddSupportingImage(file *models.ImageUpload) (*attachments.Staged, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return nil, errBusy
	}

	staged, err := c.attachments.Stage(file)
	if err != nil {
		return nil, err
	}
	c.form.SupportingImages = append(c.form.SupportingImages, staged)
	return staged, nil
}

// RemoveSupportingImage drops and releases a staged supporting image
func (c *Composer) RemoveSupportingImage(handle attachments.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return errBusy
	}

	for i, staged := range c.form.SupportingImages {
		if staged.Handle == handle {
			if err := c.attachments.Release(staged); err != nil {
				return err
			}
			c.form.SupportingImages = append(c.form.SupportingImages[:i], c.form.SupportingImages[i+1:]...)
			return nil
		}
	}
	return apperrors.InvalidInput("composer.RemoveSupportingImage", "image is not part of this submission")
}

// Form returns a copy of the current form
func (c *Composer) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	form := c.form
	form.SupportingImages = append([]*attachments.Staged(nil), c.form.SupportingImages...)
	return form
}

// Busy reports whether a submission is in flight
func (c *Composer) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Message returns the confirmation of the last successful submission
func (c *Composer) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Submit sends the form as a pending article.
//
// The session is checked first, then the form is validated locally; neither
// failure reaches the network. On success all previews are released and the
// form is cleared. On failure the form and its previews are kept for a retry.
func (c *Composer) Submit(ctx context.Context) (*models.MutationResponse, error) {
	const op = "composer.Submit"

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, errBusy
	}
	if !c.session.Authenticated() {
		c.mu.Unlock()
		return nil, apperrors.Authentication(op, "please sign in to submit a request")
	}
	payload, err := c.payload(op)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.busy = true
	c.mu.Unlock()

	resp, err := c.submitter.Submit(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err != nil {
		c.logger.Warn("submission failed", zap.Error(err))
		return nil, err
	}

	c.releaseAll()
	c.form = Form{}
	c.message = resp.Message
	c.logger.Info("submission accepted", zap.String("message", resp.Message))
	return resp, nil
}

// Close releases every preview still held by the composer
func (c *Composer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseAll()
	c.form = Form{}
}

// payload validates the form. Callers hold c.mu.
func (c *Composer) payload(op string) (client.SubmitPayload, error) {
	title := strings.TrimSpace(c.form.Title)
	description := strings.TrimSpace(c.form.Description)

	switch {
	case title == "":
		return client.SubmitPayload{}, apperrors.Validation(op, "title is required")
	case description == "":
		return client.SubmitPayload{}, apperrors.Validation(op, "description is required")
	case c.form.Cover == nil:
		return client.SubmitPayload{}, apperrors.Validation(op, "cover image is required")
	}

	payload := client.SubmitPayload{
		Title:       title,
		Description: description,
		Cover:       c.form.Cover.File,
	}
	for _, staged := range c.form.SupportingImages {
		payload.SupportingImages = append(payload.SupportingImages, staged.File)
	}
	return payload, nil
}

// releaseAll frees the cover and supporting previews. Callers hold c.mu.
func (c *Composer) releaseAll() {
	staged := append([]*attachments.Staged{c.form.Cover}, c.form.SupportingImages...)
	for _, s := range staged {
		if s == nil {
			continue
		}
		if err := c.attachments.Release(s); err != nil {
			c.logger.Warn("failed to release preview", zap.String("handle", string(s.Handle)), zap.Error(err))
		}
	}
	c.form.Cover = nil
	c.form.SupportingImages = nil
}
