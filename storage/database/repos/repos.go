package dbrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tmatias/aigrader/core/lms"
)

type repository struct {
	db *sqlx.DB
}

var _ lms.Repository = (*repository)(nil) // interface compliance check

func NewRepository(db *sqlx.DB) *repository {
	return &repository{db: db}
}

// atomic runs fn inside a single transaction; one reconciliation scope must
// never be left half-applied.
func (repo *repository) atomic(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// deleteByIDs issues a single IN-clause delete; no-op on an empty id list.
func deleteByIDs(ctx context.Context, tx *sqlx.Tx, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM "+table+" WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrapf(err, "building %s delete", table)
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	return nil
}
