package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const accessTokenType = "access"

// Verification failures. All three match apperr.ErrUnauthorized so callers
// outside this package see a single outcome; logs and tests can tell them apart.
var (
	ErrExpiredToken     = &tokenError{reason: "expired"}
	ErrInvalidSignature = &tokenError{reason: "invalid_signature"}
	ErrMalformedToken   = &tokenError{reason: "malformed"}
)

type tokenError struct {
	reason string
}

func (e *tokenError) Error() string { return "token " + e.reason }

func (e *tokenError) Is(target error) bool { return target == apperr.ErrUnauthorized }

// Reason returns the internal failure class of a verification error, for logs.
func Reason(err error) string {
	var te *tokenError
	if errors.As(err, &te) {
		return te.reason
	}
	return "unknown"
}

type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewManager(secret string, accessTTL time.Duration) *Manager {
	return &Manager{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// WithClock swaps the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *Manager) GenerateAccessToken(userID string) (token string, expiresAt time.Time, err error) {
	return m.Issue(userID, m.accessTTL)
}

// Issue signs a token for userID that expires ttl from now.
func (m *Manager) Issue(userID string, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("issue token: empty subject")
	}

	now := m.now().UTC()
	expiresAt := now.Add(ttl)

	claims := Claims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	// exp is stored in whole seconds; report the instant the token actually lapses
	return signed, claims.ExpiresAt.Time, nil
}

// VerifyAccessToken resolves a token to its user id.
func (m *Manager) VerifyAccessToken(tokenStr string) (string, error) {
	claims, err := m.ParseAndValidate(tokenStr)
	if err != nil {
		return "", err
	}

	if claims.TokenType != accessTokenType || claims.Subject == "" {
		return "", ErrMalformedToken
	}

	return claims.Subject, nil
}

func (m *Manager) ParseAndValidate(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		return nil, classify(err)
	}

	if !token.Valid {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

// classify maps jwt library errors onto our three verification failures.
// The signature is checked before the claims, so a forged expired token
// reports invalid_signature.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	default:
		return ErrMalformedToken
	}
}
