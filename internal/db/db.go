package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// NewPool builds the pool without dialing: connections are opened on first
// use, so a database that is still starting is handled by EnsureSchema's
// retry loop rather than failing here.
func NewPool(ctx context.Context, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(pc.URL)

	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 5
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 && pc.MinConns <= cfg.MaxConns {
		cfg.MinConns = pc.MinConns
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}
