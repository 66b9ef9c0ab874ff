// Package attachments manages locally staged image previews.
//
// Every Stage must be matched by exactly one Release. The Manager keeps a
// ledger of handles so a leaked or doubly released preview is observable.
package attachments

import (
	"sync"

	"github.com/google/uuid"
	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/models"
	"go.uber.org/zap"
)

// ErrAlreadyReleased is returned when a handle is released a second time
var ErrAlreadyReleased = &apperrors.Error{
	Kind:    apperrors.ErrInvalidInput,
	Op:      "attachments.Release",
	Message: "preview already released",
}

// Handle addresses a staged preview
type Handle string

// Staged is a file selected by the user that has not been persisted yet
type Staged struct {
	Handle Handle
	File   models.ImageUpload
}

// Manager allocates and frees preview handles
type Manager struct {
	mu       sync.Mutex
	live     map[Handle]models.ImageUpload
	released map[Handle]struct{}
	logger   *zap.Logger
}

// NewManager creates an empty manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		live:     make(map[Handle]models.ImageUpload),
		released: make(map[Handle]struct{}),
		logger:   logger,
	}
}

// Stage allocates a preview for file
func (m *Manager) Stage(file *models.ImageUpload) (*Staged, error) {
	if file == nil {
		return nil, apperrors.InvalidInput("attachments.Stage", "no file selected")
	}

	handle := Handle(uuid.NewString())

	m.mu.Lock()
	m.live[handle] = *file
	m.mu.Unlock()

	m.logger.Debug("preview staged", zap.String("handle", string(handle)), zap.String("filename", file.Filename))
	return &Staged{Handle: handle, File: *file}, nil
}

// Release frees the preview of s
func (m *Manager) Release(s *Staged) error {
	const op = "attachments.Release"
	if s == nil {
		return apperrors.InvalidInput(op, "no preview to release")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.released[s.Handle]; ok {
		m.logger.Warn("preview released twice", zap.String("handle", string(s.Handle)))
		return ErrAlreadyReleased
	}
	if _, ok := m.live[s.Handle]; !ok {
		return apperrors.InvalidInput(op, "unknown preview")
	}

	delete(m.live, s.Handle)
	m.released[s.Handle] = struct{}{}
	return nil
}

// Replace releases old and stages file in its place. A nil old only stages.
// When file is nil, old stays staged.
func (m *Manager) Replace(old *Staged, file *models.ImageUpload) (*Staged, error) {
	if file == nil {
		return nil, apperrors.InvalidInput("attachments.Replace", "no file selected")
	}
	if old != nil {
		if err := m.Release(old); err != nil {
			return nil, err
		}
	}
	return m.Stage(file)
}

// Preview returns the file behind a live handle
func (m *Manager) Preview(handle Handle) (models.ImageUpload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.live[handle]
	return file, ok
}

// Outstanding returns the number of staged previews not yet released
func (m *Manager) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Released returns the number of previews released so far
func (m *Manager) Released() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.released)
}
