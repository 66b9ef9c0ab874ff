// Package editor edits a pending knowledge article owned by the caller.
package editor

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/attachments"
	"github.com/knowledgehub/backend/internal/client"
	"github.com/knowledgehub/backend/internal/models"
	"github.com/knowledgehub/backend/internal/ownership"
	"github.com/knowledgehub/backend/internal/session"
	"go.uber.org/zap"
)

// Service reads and updates articles
type Service interface {
	Get(ctx context.Context, id int) (*models.Article, error)
	Update(ctx context.Context, id int, p client.UpdatePayload) (*models.MutationResponse, error)
}

// Image is one supporting image as currently displayed.
// Persisted images carry an ID; staged ones carry a Handle.
type Image struct {
	ID       int
	Handle   attachments.Handle
	Filename string
}

const msgNotPending = "only pending requests can be edited"

var (
	errBusy   = apperrors.Validation("editor", "update already in progress")
	errClosed = apperrors.InvalidInput("editor", "edit session is closed")
)

// Editor is one edit session. It owns every preview it stages and releases
// each exactly once, on successful submit or on Close.
type Editor struct {
	mu          sync.Mutex
	service     Service
	session     *session.Session
	attachments *attachments.Manager
	logger      *zap.Logger

	article     models.Article
	title       string
	description string
	cover       *attachments.Staged
	added       []*attachments.Staged
	removed     []int
	busy        bool
	closed      bool
}

// Open fetches the article and starts an edit session.
// A non-pending article opens read-only; see Editable.
func Open(ctx context.Context, svc Service, sess *session.Session, manager *attachments.Manager, logger *zap.Logger, id int) (*Editor, error) {
	const op = "editor.Open"

	if !sess.Authenticated() {
		return nil, apperrors.Authentication(op, "please sign in to edit a request")
	}

	article, err := svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if article.OwnerID != sess.CallerID() {
		return nil, apperrors.Permission(op, "you can only edit your own requests")
	}

	return &Editor{
		service:     svc,
		session:     sess,
		attachments: manager,
		logger:      logger.With(zap.Int("article_id", article.ID)),
		article:     *article,
		title:       article.Title,
		description: article.Description,
	}, nil
}

// Editable reports whether edit controls should be enabled
func (e *Editor) Editable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.article.Status == models.StatusPending && !e.closed && !e.busy
}

// Article returns the article as fetched
func (e *Editor) Article() models.Article {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.article
}

// SetTitle updates the title
func (e *Editor) SetTitle(title string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable("editor.SetTitle"); err != nil {
		return err
	}
	e.title = title
	return nil
}

// SetDescription updates the description
func (e *Editor) SetDescription(description string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable("editor.SetDescription"); err != nil {
		return err
	}
	e.description = description
	return nil
}

// ReplaceCover stages a new cover. The persisted cover stays as fallback until submit.
func (e *Editor) ReplaceCover(file *models.ImageUpload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable("editor.ReplaceCover"); err != nil {
		return err
	}

	staged, err := e.attachments.Replace(e.cover, file)
	if err != nil {
		return err
	}
	e.cover = staged
	return nil
}

// DiscardCoverReplacement drops a staged cover and falls back to the persisted one
func (e *Editor) DiscardCoverReplacement() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable("editor.DiscardCoverReplacement"); err != nil {
		return err
	}
	if e.cover == nil {
		return nil
	}
	if err := e.attachments.Release(e.cover); err != nil {
		return err
	}
	e.cover = nil
	return nil
}

// Cover returns the cover that will be kept: the staged replacement if any,
// otherwise the persisted cover. ok is false when neither exists.
func (e *Editor) Cover() (filename string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cover != nil {
		return e.cover.File.Filename, true
	}
	if c := e.article.CoverImage; c != nil && c.HasImage {
		return c.Filename, true
	}
	return "", false
}

// RemoveSupportingImage marks a persisted supporting image for removal
func (e *Editor) RemoveSupportingImage(imageID int) error {
	const op = "editor.RemoveSupportingImage"

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(op); err != nil {
		return err
	}
	if slices.Contains(e.removed, imageID) {
		return apperrors.InvalidInput(op, "image is already marked for removal")
	}
	if !slices.ContainsFunc(e.article.SupportingImages, func(a models.Attachment) bool { return a.ID == imageID }) {
		return apperrors.InvalidInput(op, "image does not belong to this request")
	}

	e.removed = append(e.removed, imageID)
	return nil
}

// AddSupportingImage stages a new supporting image
func (e *Editor) AddSupportingImage(file *models.ImageUpload) (*attachments.Staged, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable("editor.AddSupportingImage"); err != nil {
		return nil, err
	}

	staged, err := e.attachments.Stage(file)
	if err != nil {
		return nil, err
	}
	e.added = append(e.added, staged)
	return staged, nil
}

// DropAddedImage releases a staged supporting image before submit
func (e *Editor) DropAddedImage(handle attachments.Handle) error {
	const op = "editor.DropAddedImage"

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(op); err != nil {
		return err
	}

	i := slices.IndexFunc(e.added, func(s *attachments.Staged) bool { return s.Handle == handle })
	if i < 0 {
		return apperrors.InvalidInput(op, "image is not part of this edit")
	}
	if err := e.attachments.Release(e.added[i]); err != nil {
		return err
	}
	e.added = slices.Delete(e.added, i, i+1)
	return nil
}

// SupportingImages returns the kept persisted images followed by staged additions
func (e *Editor) SupportingImages() []Image {
	e.mu.Lock()
	defer e.mu.Unlock()

	images := make([]Image, 0, len(e.article.SupportingImages)+len(e.added))
	for _, a := range e.article.SupportingImages {
		if slices.Contains(e.removed, a.ID) {
			continue
		}
		images = append(images, Image{ID: a.ID, Filename: a.Filename})
	}
	for _, s := range e.added {
		images = append(images, Image{Handle: s.Handle, Filename: s.File.Filename})
	}
	return images
}

// RemovedIDs returns the ids marked for removal in the order they were marked
func (e *Editor) RemovedIDs() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.removed)
}

// Busy reports whether an update is in flight
func (e *Editor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Submit sends the edit. On success every preview is released, the session
// closes and the returned state carries the confirmation for the ownership view.
// On failure all edits are kept.
func (e *Editor) Submit(ctx context.Context) (ownership.NavState, error) {
	const op = "editor.Submit"

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return ownership.NavState{}, errBusy
	}
	if e.closed {
		e.mu.Unlock()
		return ownership.NavState{}, errClosed
	}
	if e.article.Status != models.StatusPending {
		e.mu.Unlock()
		return ownership.NavState{}, apperrors.Permission(op, msgNotPending)
	}
	if !e.session.Authenticated() {
		e.mu.Unlock()
		return ownership.NavState{}, apperrors.Authentication(op, "please sign in to edit a request")
	}
	payload, err := e.payload(op)
	if err != nil {
		e.mu.Unlock()
		return ownership.NavState{}, err
	}
	id := e.article.ID
	e.busy = true
	e.mu.Unlock()

	resp, err := e.service.Update(ctx, id, payload)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false

	if err != nil {
		e.logger.Warn("update failed", zap.Error(err))
		return ownership.NavState{}, err
	}

	e.releaseAll()
	e.closed = true
	e.logger.Info("update accepted", zap.Ints("removed_image_ids", e.removed))
	return ownership.NavState{ArticleID: id, Message: resp.Message}, nil
}

// Close ends the session and releases every preview still held
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseAll()
	e.closed = true
}

// checkMutable rejects edits once the session can no longer change the article. Callers hold e.mu.
func (e *Editor) checkMutable(op string) error {
	switch {
	case e.closed:
		return errClosed
	case e.busy:
		return errBusy
	case e.article.Status != models.StatusPending:
		return apperrors.Permission(op, msgNotPending)
	}
	return nil
}

// payload validates the edit. Callers hold e.mu.
func (e *Editor) payload(op string) (client.UpdatePayload, error) {
	title := strings.TrimSpace(e.title)
	description := strings.TrimSpace(e.description)

	switch {
	case title == "":
		return client.UpdatePayload{}, apperrors.Validation(op, "title is required")
	case description == "":
		return client.UpdatePayload{}, apperrors.Validation(op, "description is required")
	case e.cover == nil && (e.article.CoverImage == nil || !e.article.CoverImage.HasImage):
		return client.UpdatePayload{}, apperrors.Validation(op, "cover image is required")
	}

	payload := client.UpdatePayload{
		Title:       title,
		Description: description,
	}
	if e.cover != nil {
		cover := e.cover.File
		payload.Cover = &cover
	}
	if len(e.removed) > 0 {
		payload.RemoveImageIDs = slices.Clone(e.removed)
	}
	for _, s := range e.added {
		payload.SupportingImages = append(payload.SupportingImages, s.File)
	}
	return payload, nil
}

// releaseAll frees the staged cover and additions. Callers hold e.mu.
func (e *Editor) releaseAll() {
	staged := append([]*attachments.Staged{e.cover}, e.added...)
	for _, s := range staged {
		if s == nil {
			continue
		}
		if err := e.attachments.Release(s); err != nil {
			e.logger.Warn("failed to release preview", zap.String("handle", string(s.Handle)), zap.Error(err))
		}
	}
	e.cover = nil
	e.added = nil
}
