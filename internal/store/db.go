// Package store holds the bun repositories shared by the ledgers and
// orchestrators. Every method runs against whatever bun.IDB the DB wraps,
// so the same code serves both the root connection and a transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-boxoffice/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

func New(db bun.IDB) *DB {
	return &DB{Bun: db}
}

// RunInTx runs fn inside a transaction. Nested calls reuse the
// transaction that is already open.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	switch db := d.Bun.(type) {
	case bun.Tx:
		return fn(ctx, d)
	case *bun.DB:
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, &DB{Bun: tx})
		})
	default:
		return fmt.Errorf("store: unsupported connection type %T", d.Bun)
	}
}

// CreateSchema creates every table from the models. Production databases
// are migrated with golang-migrate; this is used by tests and local runs.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range models.All() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
