package db

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/db/migrations"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a ();\n-- +migrate Down\nDROP TABLE a;\n"

	up := ExtractUpMigration(content)
	if !strings.Contains(up, "CREATE TABLE a") || strings.Contains(up, "DROP TABLE") {
		t.Fatalf("unexpected up section %q", up)
	}

	if got := ExtractUpMigration("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("content without markers should pass through, got %q", got)
	}
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}

	if len(names) < 2 || !strings.HasPrefix(names[0], "0001_users") {
		t.Fatalf("users must be created before tasks, got %v", names)
	}

	for _, n := range names {
		b, _ := fs.ReadFile(migrations.FS, n)
		if strings.TrimSpace(ExtractUpMigration(string(b))) == "" {
			t.Fatalf("migration %s has an empty up section", n)
		}
	}
}

type fakeSignupper struct {
	err   error
	calls int
}

func (f *fakeSignupper) Signup(ctx context.Context, email, password string) (user.User, error) {
	f.calls++
	if f.err != nil {
		return user.User{}, f.err
	}
	return user.User{ID: "seed", Email: email}, nil
}

func TestEnsureSeedUser(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	skip := &fakeSignupper{}
	if err := EnsureSeedUser(ctx, skip, "", "", log); err != nil || skip.calls != 0 {
		t.Fatalf("empty credentials should skip seeding")
	}

	dup := &fakeSignupper{err: apperr.ErrDuplicateEmail}
	if err := EnsureSeedUser(ctx, dup, "demo@x.com", "password123", log); err != nil {
		t.Fatalf("existing seed user should not be an error, got %v", err)
	}

	down := &fakeSignupper{err: apperr.ErrStoreUnavailable}
	if err := EnsureSeedUser(ctx, down, "demo@x.com", "password123", log); !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

type countingMigrator struct {
	err   error
	execs int
}

func (m *countingMigrator) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execs++
	return pgconn.CommandTag{}, m.err
}

func (m *countingMigrator) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, m.err
}

func TestEnsureSchemaRetries(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		maxElapsed time.Duration
		wantMore   bool
	}{
		{name: "unreachable database is retried", err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), maxElapsed: 200 * time.Millisecond, wantMore: true},
		{name: "admin shutdown is retried", err: &pgconn.PgError{Code: "57P01"}, maxElapsed: 200 * time.Millisecond, wantMore: true},
		{name: "syntax error is permanent", err: &pgconn.PgError{Code: "42601"}, maxElapsed: 200 * time.Millisecond},
		{name: "zero budget tries once", err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &countingMigrator{err: tt.err}

			err := ensureSchema(context.Background(), m, migrations.FS, backoff.NewConstantBackOff(10*time.Millisecond), tt.maxElapsed, log)
			if err == nil {
				t.Fatalf("expected an error")
			}

			if tt.wantMore && m.execs < 2 {
				t.Fatalf("got %d attempts, want a retry", m.execs)
			}
			if !tt.wantMore && m.execs != 1 {
				t.Fatalf("got %d attempts, want exactly one", m.execs)
			}
		})
	}
}

// lockedBuffer lets the pool's background goroutines and the test share a log sink.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestEnsureSchemaWaitsForClosedPort(t *testing.T) {
	ctx := context.Background()

	pool, err := NewPool(ctx, PoolConfig{URL: "postgres://u:p@127.0.0.1:1/x?sslmode=disable&connect_timeout=1"})
	if err != nil {
		t.Fatalf("NewPool() must not dial, got %v", err)
	}
	defer pool.Close()

	var out lockedBuffer
	log := slog.New(slog.NewTextHandler(&out, nil))

	err = EnsureSchema(ctx, pool, 1500*time.Millisecond, log)
	if err == nil {
		t.Fatalf("expected EnsureSchema to give up on a closed port")
	}

	if retries := strings.Count(out.String(), "schema bootstrap failed, retrying"); retries < 1 {
		t.Fatalf("expected at least one retry before giving up, log=%s", out.String())
	}
}
