package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/knowledgehub/backend/internal/models"
)

// TokenGenerator handles JWT access token generation and validation
type TokenGenerator struct {
	secret            string
	accessTokenExpiry time.Duration
}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator(secret string, accessExpiry time.Duration) *TokenGenerator {
	return &TokenGenerator{
		secret:            secret,
		accessTokenExpiry: accessExpiry,
	}
}

// GenerateAccessToken creates an access token carrying the caller's id, role, display name and e-mail.
// The role is written by name; numeric encodings are legacy and "0" reads back as admin.
func (tg *TokenGenerator) GenerateAccessToken(caller models.Caller) (string, error) {
	claims := jwt.MapClaims{
		"user_id": caller.ID,
		"role":    caller.Role.String(),
		"name":    caller.Name,
		"exp":     time.Now().Add(tg.accessTokenExpiry).Unix(),
		"iat":     time.Now().Unix(),
		"type":    "access",
	}
	if caller.Email != "" {
		claims["email"] = caller.Email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tg.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ValidateAccessToken validates an access token and returns the caller it identifies.
//
// The role claim may use any historical encoding; it is normalized here once.
func (tg *TokenGenerator) ValidateAccessToken(tokenString string) (*models.Caller, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tg.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		return nil, fmt.Errorf("token is not an access token")
	}

	// JWT claims decode numbers as float64
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("user_id not found in token")
	}

	rawRole, ok := claims["role"]
	if !ok {
		return nil, fmt.Errorf("role not found in token")
	}

	caller := &models.Caller{
		ID:   int(userID),
		Role: models.ParseRole(rawRole),
	}
	if name, ok := claims["name"].(string); ok {
		caller.Name = name
	}
	if email, ok := claims["email"].(string); ok {
		caller.Email = email
	}

	return caller, nil
}
