package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/jackc/pgx/v5/pgconn"
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// isForeignKeyViolation reports an insert that referenced a missing row.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// isInvalidText reports a value postgres could not parse for its column type,
// e.g. a non-uuid string compared against a uuid column.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// IsUnavailable reports whether err means the database could not be reached
// or stopped serving, as opposed to rejecting a statement.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08 connection exception, 57P01..03 admin shutdown / cannot connect now
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if pgconn.Timeout(err) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "closed pool")
}

// wrapErr tags connectivity failures with apperr.ErrStoreUnavailable and
// leaves everything else untouched.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}

	if IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %v", op, apperr.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
