package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Every query below is scoped by user_id. A row owned by someone else is
// indistinguishable from a missing row.

const taskColumns = `id, user_id, title, description, is_completed, created_at, updated_at`

type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return task.ErrNotFound
	}
	return wrapErr(op, err)
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	op := "tasks.create"

	err := r.observe(op, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO tasks (id, user_id, title, description, is_completed, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			t.ID, t.UserID, t.Title, t.Description, t.IsCompleted, t.CreatedAt, t.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if isForeignKeyViolation(err) {
			return task.Task{}, task.ErrOwnerGone
		}
		return task.Task{}, wrapErr(op, err)
	}

	return t, nil
}

func (r *TasksRepo) GetByIDAndOwner(ctx context.Context, ownerID, id string) (task.Task, error) {
	op := "tasks.get_by_id_and_owner"

	var t task.Task
	err := r.observe(op, func() error {
		var err error
		t, err = scanTask(r.pool.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
			id, ownerID,
		))
		return err
	})

	if err != nil {
		return task.Task{}, notFoundOr(op, err)
	}

	return t, nil
}

func (r *TasksRepo) ListByOwner(ctx context.Context, ownerID string, f task.ListTasksFilter) ([]task.Task, error) {
	op := "tasks.list_by_owner"

	conds := []string{"user_id = $1"}
	args := []interface{}{ownerID}
	argsPosition := 2

	if f.Completed != nil {
		conds = append(conds, fmt.Sprintf("is_completed = $%d", argsPosition))
		args = append(args, *f.Completed)
		argsPosition++
	}

	if !f.BeforeCreatedAt.IsZero() && f.BeforeID != "" {
		conds = append(conds, fmt.Sprintf("(created_at, id) < ($%d, $%d)", argsPosition, argsPosition+1))
		args = append(args, f.BeforeCreatedAt, f.BeforeID)
		argsPosition += 2
	}

	// newest first, id breaks ties so the keyset cursor is stable
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argsPosition)
	args = append(args, f.Limit)

	var rows pgx.Rows
	err := r.observe(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, query, args...)
		return qerr
	})
	if err != nil {
		if isInvalidText(err) {
			return []task.Task{}, nil
		}
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	out := make([]task.Task, 0, f.Limit)

	for rows.Next() {
		t, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, wrapErr(op, scanErr)
		}
		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}

	return out, nil
}

// UpdateByIDAndOwner applies a partial update inside one transaction. The row
// is locked with FOR UPDATE, so concurrent updates of the same task serialise
// and the last writer wins without losing fields.
func (r *TasksRepo) UpdateByIDAndOwner(ctx context.Context, ownerID, id string, req task.UpdateTaskRequest) (updated task.Task, err error) {
	op := "tasks.update_by_id_and_owner"

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return task.Task{}, wrapErr(op+".begin", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var current task.Task
	err = r.observe(op+".lock", func() error {
		var e error
		current, e = scanTask(tx.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			id, ownerID,
		))
		return e
	})
	if err != nil {
		return task.Task{}, notFoundOr(op, err)
	}

	// updated_at comes from the database clock below
	req.Apply(&current, current.UpdatedAt)

	err = r.observe(op+".write", func() error {
		var e error
		updated, e = scanTask(tx.QueryRow(ctx,
			`UPDATE tasks
			SET title = $3,
				description = $4,
				is_completed = $5,
				updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING `+taskColumns,
			id, ownerID, current.Title, current.Description, current.IsCompleted,
		))
		return e
	})
	if err != nil {
		return task.Task{}, notFoundOr(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return task.Task{}, wrapErr(op+".commit", err)
	}

	return updated, nil
}

// ToggleByIDAndOwner flips completion in a single statement; the UPDATE takes
// the row lock, so two concurrent toggles always produce two flips.
func (r *TasksRepo) ToggleByIDAndOwner(ctx context.Context, ownerID, id string) (task.Task, error) {
	op := "tasks.toggle_by_id_and_owner"

	var t task.Task
	err := r.observe(op, func() error {
		var err error
		t, err = scanTask(r.pool.QueryRow(ctx,
			`UPDATE tasks
			SET is_completed = NOT is_completed,
				updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING `+taskColumns,
			id, ownerID,
		))
		return err
	})

	if err != nil {
		return task.Task{}, notFoundOr(op, err)
	}

	return t, nil
}

func (r *TasksRepo) DeleteByIDAndOwner(ctx context.Context, ownerID, id string) error {
	op := "tasks.delete_by_id_and_owner"

	var tag pgconn.CommandTag
	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
		return err
	})

	if err != nil {
		return notFoundOr(op, err)
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}

	return nil
}
