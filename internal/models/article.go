package models

import (
	"strings"
	"time"
)

// Article represents a knowledge article moving through the moderation lifecycle
type Article struct {
	ID               int          `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Status           Status       `json:"status"`
	OwnerID          int          `json:"ownerId"`
	OwnerDisplayName string       `json:"ownerDisplayName"`
	OwnerEmail       string       `json:"-"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	CoverImage       *Attachment  `json:"coverImage"`
	SupportingImages []Attachment `json:"supportingImages"`
}

// Attachment represents a persisted image of an article.
// Data is transferred as base64 by encoding/json.
type Attachment struct {
	ID         int       `json:"imageId,omitempty"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mimeType"`
	Data       []byte    `json:"data,omitempty"`
	HasImage   bool      `json:"hasImage"`
	Kind       ImageKind `json:"-"`
	StorageKey string    `json:"-"`
	Size       int64     `json:"-"`
	Position   int       `json:"-"`
}

// ImageKind distinguishes the cover image from supporting images
type ImageKind string

const (
	ImageKindCover      ImageKind = "cover"
	ImageKindSupporting ImageKind = "supporting"
)

// ImageUpload is a binary received from a multipart request
type ImageUpload struct {
	Filename string
	MimeType string
	Data     []byte
}

// Caller identifies the authenticated user issuing a request
type Caller struct {
	ID    int
	Role  Role
	Name  string
	Email string
}

// CreateArticleRequest represents a request to submit a new article
type CreateArticleRequest struct {
	Title            string
	Description      string
	Cover            *ImageUpload
	SupportingImages []ImageUpload
}

// UpdateArticleRequest represents a request to edit a pending article
type UpdateArticleRequest struct {
	Title            string
	Description      string
	Cover            *ImageUpload
	RemoveImageIDs   []int
	SupportingImages []ImageUpload
}

// DecisionRequest represents a moderation decision.
// ExpectedStatus defaults to pending when empty.
type DecisionRequest struct {
	Status         Status `json:"status"`
	ExpectedStatus Status `json:"expectedStatus,omitempty"`
}

// MutationResponse is returned by submit, update and decide
type MutationResponse struct {
	Message string   `json:"message"`
	Data    *Article `json:"data,omitempty"`
}

// ArticleFilter narrows a listing. Nil fields are not applied.
type ArticleFilter struct {
	Status  *Status
	OwnerID *int
	Search  string
}

// DecisionEvent is published after a moderator decides an article.
// RequestID links the worker's logs to the API request that made the decision.
type DecisionEvent struct {
	ArticleID  int    `json:"articleId"`
	OwnerID    int    `json:"ownerId"`
	OwnerEmail string `json:"ownerEmail,omitempty"`
	Title      string `json:"title"`
	Status     Status `json:"status"`
	RequestID  string `json:"requestId,omitempty"`
}

// Matches reports whether query is a case-insensitive substring of the title,
// description or owner display name. An empty query matches everything.
func (a Article) Matches(query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, field := range []string{a.Title, a.Description, a.OwnerDisplayName} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
