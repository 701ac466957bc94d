package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the payload of an issued bearer token. UserID mirrors the
// subject for clients that read the userId claim.
type TokenClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 bearer tokens. The secret is fixed
// for the lifetime of the process.
type TokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

func (m *TokenManager) Issue(subjectID string) (string, error) {
	if subjectID == "" {
		return "", errors.New("token subject is required")
	}

	now := m.now()
	claims := TokenClaims{
		UserID: subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a raw token and returns its subject.
func (m *TokenManager) Verify(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, m.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return m.Subject(token)
}

// Subject extracts the subject from an already parsed token.
func (m *TokenManager) Subject(token *jwt.Token) (string, error) {
	if token == nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || claims.Subject == "" || claims.ExpiresAt == nil {
		return "", ErrInvalidToken
	}
	if claims.UserID != "" && claims.UserID != claims.Subject {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Keyfunc returns the signing secret for HS256 tokens and rejects every
// other algorithm.
func (m *TokenManager) Keyfunc(token *jwt.Token) (interface{}, error) {
	if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return m.secret, nil
}
