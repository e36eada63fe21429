// Package postgres persists the access-control domain in PostgreSQL
// through a single pgx/v5 pool: RBAC roles, permissions, bundles, and
// assignments, license grants, surface bindings, deployment records, and
// the audit trail. Driver errors are mapped onto the domain's sentinel
// errors so callers never see SQLSTATE codes.
//
// Schema lives in the migrations directory as goose SQL files; apply it
// with pg.Migrate before constructing the store.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatekit/gatekit/pkg/audit"
	"github.com/gatekit/gatekit/pkg/deploy"
	"github.com/gatekit/gatekit/pkg/license"
	"github.com/gatekit/gatekit/pkg/rbac"
	"github.com/gatekit/gatekit/pkg/surface"
)

// Store implements every storage interface of the access-control core
// over one connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ rbac.Store           = (*Store)(nil)
	_ license.GrantStore   = (*Store)(nil)
	_ surface.BindingStore = (*Store)(nil)
	_ deploy.RecordStore   = (*Store)(nil)
	_ audit.Storage        = (*Store)(nil)
)

// New creates a Store over the given pool. The pool is owned by the
// caller; the store never closes it.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("postgres: pool is required")
	}
	return &Store{pool: pool}
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
