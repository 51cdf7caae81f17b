package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is the query surface shared by *pgxpool.Pool and pgx.Tx, so every
// repository works both standalone and inside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// newBoundedDB wraps a dbtx so every call runs under a deadline. Pool
// acquisition has no timeout of its own in pgxpool; it blocks on the caller's
// context, so background jobs running on context.Background would otherwise
// wait forever on an exhausted pool. A timeout of zero leaves db unbounded.
func newBoundedDB(db dbtx, timeout time.Duration) dbtx {
	if timeout <= 0 {
		return db
	}
	return &boundedDB{db: db, timeout: timeout}
}

type boundedDB struct {
	db      dbtx
	timeout time.Duration
}

func (b *boundedDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.db.Exec(ctx, sql, args...)
}

func (b *boundedDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	rows, err := b.db.Query(ctx, sql, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	// The deadline must outlive row iteration; Close releases it.
	return &deadlineRows{Rows: rows, cancel: cancel}, nil
}

func (b *boundedDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	return &deadlineRow{Row: b.db.QueryRow(ctx, sql, args...), cancel: cancel}
}

type deadlineRows struct {
	pgx.Rows
	cancel context.CancelFunc
}

func (r *deadlineRows) Close() {
	r.Rows.Close()
	r.cancel()
}

type deadlineRow struct {
	pgx.Row
	cancel context.CancelFunc
}

func (r *deadlineRow) Scan(dest ...any) error {
	defer r.cancel()
	return r.Row.Scan(dest...)
}
