package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const MinPasswordLen = 8

type AuthService struct {
	users    UserStore
	hasher   PasswordHasher
	tokens   TokenManager
	validate *validator.Validate
	prom     *observability.Prom
	log      *slog.Logger
	now      func() time.Time
}

func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenManager, prom *observability.Prom, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}

	// warm the dummy hash so the first unknown-email login is not slower
	// than a real one
	_, _ = hasher.DummyHash()

	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		validate: validator.New(),
		prom:     prom,
		log:      log,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

type LoginResult struct {
	User        user.User
	AccessToken string
	ExpiresAt   time.Time
}

// NormalizeEmail trims and lowercases, so "A@x.com" and "a@x.com" are the
// same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) validateSignup(email, password string) error {
	if email == "" {
		return apperr.Validation("email", "is required")
	}

	if err := s.validate.Var(email, "email"); err != nil {
		return apperr.Validation("email", "must be a valid email address")
	}

	if utf8.RuneCountInString(password) < MinPasswordLen {
		return apperr.Validation("password", fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}

	return nil
}

func (s *AuthService) Signup(ctx context.Context, email, password string) (user.User, error) {
	email = NormalizeEmail(email)

	if err := s.validateSignup(email, password); err != nil {
		s.prom.AuthOutcome("signup", "invalid")
		return user.User{}, err
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		s.prom.AuthOutcome("signup", "duplicate")
		return user.User{}, apperr.ErrDuplicateEmail
	case !errors.Is(err, user.ErrNotFound):
		return user.User{}, storeErr("signup", err)
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return user.User{}, fmt.Errorf("signup: %w: %v", apperr.ErrInternal, err)
	}
	if hash == "" {
		return user.User{}, fmt.Errorf("signup: %w: empty password hash", apperr.ErrInternal)
	}

	now := s.now()
	u, err := s.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, user.ErrEmailTaken) {
			s.prom.AuthOutcome("signup", "duplicate")
			return user.User{}, apperr.ErrDuplicateEmail
		}
		return user.User{}, storeErr("signup", err)
	}

	s.prom.AuthOutcome("signup", "ok")
	s.log.InfoContext(ctx, "user signed up", "user_id", u.ID)

	return u, nil
}

// Login answers apperr.ErrInvalidCredentials for an unknown email and for a
// wrong password alike. An unknown email is still checked against a dummy
// hash so both paths cost one argon2 evaluation.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = NormalizeEmail(email)

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return LoginResult{}, storeErr("login", err)
		}

		if err := s.checkDummy(password); err != nil {
			return LoginResult{}, err
		}

		s.rejectLogin(ctx, "unknown_email")
		return LoginResult{}, apperr.ErrInvalidCredentials
	}

	ok, err := s.hasher.CheckPassword(u.PasswordHash, password)
	if err != nil {
		s.log.WarnContext(ctx, "stored password hash unreadable", "user_id", u.ID, "err", err)
		if err := s.checkDummy(password); err != nil {
			return LoginResult{}, err
		}

		s.rejectLogin(ctx, "bad_stored_hash")
		return LoginResult{}, apperr.ErrInvalidCredentials
	}
	if !ok {
		s.rejectLogin(ctx, "wrong_password")
		return LoginResult{}, apperr.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(u.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: %w: %v", apperr.ErrInternal, err)
	}

	s.prom.AuthOutcome("login", "ok")

	return LoginResult{User: u, AccessToken: token, ExpiresAt: expiresAt}, nil
}

// checkDummy spends one argon2 evaluation on a rejection path that has no
// usable stored hash.
func (s *AuthService) checkDummy(password string) error {
	dummy, err := s.hasher.DummyHash()
	if err != nil {
		return fmt.Errorf("login: %w: %v", apperr.ErrInternal, err)
	}
	_, _ = s.hasher.CheckPassword(dummy, password)
	return nil
}

func (s *AuthService) rejectLogin(ctx context.Context, reason string) {
	s.prom.AuthOutcome("login", "invalid_credentials")
	s.log.DebugContext(ctx, "login rejected", "reason", reason)
}

// VerifyToken resolves a bearer token to a user id. The returned error
// matches apperr.ErrUnauthorized for every failure; auth.Reason tells them
// apart for logs.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (string, error) {
	userID, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		reason := auth.Reason(err)
		s.prom.AuthOutcome("verify", reason)
		s.log.DebugContext(ctx, "token rejected", "reason", reason)

		if !errors.Is(err, apperr.ErrUnauthorized) {
			return "", fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
		}
		return "", err
	}

	return userID, nil
}

// CurrentUser loads the account behind a verified token. A token whose
// subject no longer resolves is unauthorized, not a missing resource.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, apperr.ErrUnauthorized
		}
		return user.User{}, storeErr("current user", err)
	}
	return u, nil
}
