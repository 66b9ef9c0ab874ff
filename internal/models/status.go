package models

import "fmt"

// Status represents the moderation state of an article
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusRejected  Status = "rejected"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPublished, StatusArchived, StatusRejected:
		return true
	default:
		return false
	}
}

// IsDecision reports whether s is a status a moderator may set
func (s Status) IsDecision() bool {
	return s == StatusPublished || s == StatusRejected
}

// CanTransition checks whether an article may move from one status to another.
// Only pending -> published and pending -> rejected are defined.
func CanTransition(from, to Status) error {
	if !to.IsDecision() {
		return fmt.Errorf("invalid target status: %s, must be 'published' or 'rejected'", to)
	}
	switch from {
	case StatusPending:
		return nil
	case StatusPublished, StatusRejected:
		return fmt.Errorf("article has already been decided (status: %s)", from)
	case StatusDraft, StatusArchived:
		return fmt.Errorf("article is not awaiting review (status: %s)", from)
	default:
		return fmt.Errorf("unknown status %s", from)
	}
}

// FilterAll is the listing filter value that matches every status
const FilterAll = "all"
