// Package pgstore implements the persistence interfaces on PostgreSQL.
//
// Every tenant-scoped statement filters by tenant_id in SQL as well as in the
// isolation gateway. Updates run as SELECT ... FOR UPDATE followed by UPDATE in
// one transaction, which gives the compare-and-set semantics the lifecycle and
// upload managers rely on.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the goose migrations rooted at the migration files.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanFunc[T any] func(row pgx.Row) (T, error)

func getOne[T any](ctx context.Context, q querier, scan scanFunc[T], sql string, args ...any) (T, error) {
	v, err := scan(q.QueryRow(ctx, sql, args...))
	if pg.IsNotFoundError(err) {
		return v, isolation.ErrNotFound
	}
	return v, err
}

func getMany[T any](ctx context.Context, q querier, scan scanFunc[T], sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// updateLocked loads one row with FOR UPDATE, applies fn and writes the result
// with save, all in a single transaction.
func updateLocked[T any](
	ctx context.Context,
	pool *pgxpool.Pool,
	scan scanFunc[T],
	selectSQL string,
	args []any,
	fn func(T) (T, error),
	save func(ctx context.Context, tx pgx.Tx, row T) error,
) (T, error) {
	var out T
	err := pg.WithTx(ctx, pool, func(tx pgx.Tx) error {
		cur, err := getOne(ctx, tx, scan, selectSQL+" FOR UPDATE", args...)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		if err := save(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// insertErr maps unique violations to isolation.ErrDuplicate.
func insertErr(err error) error {
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(isolation.ErrDuplicate, err)
	}
	return err
}

// where accumulates positional SQL conditions.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) addRaw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
