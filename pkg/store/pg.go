package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgExec is the slice of the pgx API the repositories write through.
// Satisfied by both *pgxpool.Pool and pgx.Tx, so single saves go
// straight to the pool while batches run inside one transaction.
type pgExec interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ pgExec = (*pgxpool.Pool)(nil)
	_ pgExec = (pgx.Tx)(nil)
)
