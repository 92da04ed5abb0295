package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/geocoder89/taskhub/internal/db/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const migrationTable = "schema_migrations"

// arbitrary, shared by every instance so only one migrates at a time
const migrationLockID = 727_311_004

// Migrator is the subset of pgxpool.Pool the migrations need.
type Migrator interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ApplyMigrations runs every embedded migration at most once, each inside its
// own transaction that holds a cluster-wide advisory lock.
func ApplyMigrations(ctx context.Context, db Migrator, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationTable+` (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		if err := applyOne(ctx, db, file, ExtractUpMigration(string(content))); err != nil {
			return err
		}
	}

	return nil
}

func applyOne(ctx context.Context, db Migrator, name, upSQL string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("lock migration %s: %w", name, err)
	}

	var applied bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+migrationTable+` WHERE name = $1)`, name,
	).Scan(&applied); err != nil {
		return fmt.Errorf("check migration %s: %w", name, err)
	}
	if applied {
		return nil
	}

	if strings.TrimSpace(upSQL) != "" {
		if _, err := tx.Exec(ctx, upSQL); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}

	if _, err := tx.Exec(ctx, `INSERT INTO `+migrationTable+` (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}

	return nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

// EnsureSchema applies the embedded migrations, retrying with exponential
// backoff while the database is unreachable or still coming up. maxElapsed
// bounds the total wait; zero means a single attempt.
func EnsureSchema(ctx context.Context, db Migrator, maxElapsed time.Duration, log *slog.Logger) error {
	return ensureSchema(ctx, db, migrations.FS, backoff.NewExponentialBackOff(), maxElapsed, log)
}

func ensureSchema(ctx context.Context, db Migrator, migrationFS fs.FS, b backoff.BackOff, maxElapsed time.Duration, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	op := func() (struct{}, error) {
		err := ApplyMigrations(ctx, db, migrationFS)
		if err == nil {
			return struct{}{}, nil
		}

		// a syntax error will not fix itself
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && !isTransient(pgErr) {
			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.WarnContext(ctx, "schema bootstrap failed, retrying", "err", err, "retry_in", next.String())
		}),
	}
	if maxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(maxElapsed))
	} else {
		opts = append(opts, backoff.WithMaxTries(1))
	}

	if _, err := backoff.Retry(ctx, op, opts...); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	log.InfoContext(ctx, "schema ready")

	return nil
}

// connection and shutdown classes (08, 57P) are worth another attempt
func isTransient(pgErr *pgconn.PgError) bool {
	return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") || pgErr.Code == "40001" || pgErr.Code == "40P01"
}
