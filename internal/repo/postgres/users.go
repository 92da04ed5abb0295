package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	op := "users.create"

	err := r.observe(op, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5)`,
			u.ID, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		// users_email_uniq backs the uniqueness check, so two racing signups
		// cannot both pass.
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, wrapErr(op, err)
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email",
		`SELECT id, email, password_hash, created_at, updated_at
         FROM users
         WHERE email = $1`,
		email,
	)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id",
		`SELECT id, email, password_hash, created_at, updated_at
         FROM users
         WHERE id = $1`,
		id,
	)
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg string) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, query, arg).Scan(
			&u.ID,
			&u.Email,
			&u.PasswordHash,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, wrapErr(op, err)
	}

	return u, nil
}
