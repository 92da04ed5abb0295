package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type Signupper interface {
	Signup(ctx context.Context, email, password string) (user.User, error)
}

// EnsureSeedUser creates the demo account through the normal signup path.
// An account that already exists is left alone. Empty credentials skip seeding.
func EnsureSeedUser(ctx context.Context, auth Signupper, email, password string, log *slog.Logger) error {
	if email == "" || password == "" {
		return nil
	}

	u, err := auth.Signup(ctx, email, password)
	switch {
	case err == nil:
		log.InfoContext(ctx, "seed user created", "user_id", u.ID)
		return nil
	case errors.Is(err, apperr.ErrDuplicateEmail):
		return nil
	default:
		return err
	}
}
