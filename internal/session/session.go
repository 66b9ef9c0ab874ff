// Package session holds the caller identity shared by the workflow clients.
//
// A Session is built once from a bearer token and its claims. The role claim is
// normalized at load time so no component compares raw role encodings.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/models"
)

// Claims are the raw identity values supplied by the auth collaborator
type Claims struct {
	UserID int
	Role   any
	Name   string
}

// Session is the process-wide caller session. A nil or cleared Session is anonymous.
type Session struct {
	mu       sync.RWMutex
	token    string
	callerID int
	role     models.Role
	name     string
}

// Load creates a session from a token and its claims
func Load(token string, claims Claims) (*Session, error) {
	const op = "session.Load"

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.Authentication(op, "session token is missing")
	}
	if claims.UserID <= 0 {
		return nil, apperrors.Authentication(op, "session has no caller id")
	}

	return &Session{
		token:    token,
		callerID: claims.UserID,
		role:     models.ParseRole(claims.Role),
		name:     claims.Name,
	}, nil
}

// FromToken reads the claims of an access token issued by the Repository Service.
// The signature is not verified here; the service verifies it on every request.
func FromToken(token string) (*Session, error) {
	const op = "session.FromToken"

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		e := apperrors.Authentication(op, "session token is malformed")
		e.Err = err
		return nil, e
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, apperrors.Authentication(op, "session has no caller id")
	}
	name, _ := claims["name"].(string)

	return Load(token, Claims{UserID: int(userID), Role: claims["role"], Name: name})
}

// Clear drops the identity. The session is anonymous afterwards.
func (s *Session) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.callerID, s.role, s.name = "", 0, models.RoleUnknown, ""
}

// Authenticated reports whether the session carries a usable token and caller id
func (s *Session) Authenticated() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.callerID > 0
}

// Token returns the bearer token
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CallerID returns the caller id, or 0 when anonymous
func (s *Session) CallerID() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callerID
}

// Role returns the canonical role
func (s *Session) Role() models.Role {
	if s == nil {
		return models.RoleUnknown
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// DisplayName returns the caller's name
func (s *Session) DisplayName() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// CanModerate reports whether the caller may approve or reject articles
func (s *Session) CanModerate() bool {
	return s.Authenticated() && s.Role().CanModerate()
}

func (s *Session) String() string {
	if !s.Authenticated() {
		return "anonymous"
	}
	return fmt.Sprintf("caller %d (%s)", s.CallerID(), s.Role())
}
