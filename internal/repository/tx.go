package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// deleteWithDependents runs the dependent deletes and finally the owner delete in one
// transaction. Every statement takes the owner id as $1. sql.ErrNoRows is returned when
// the owner row does not exist.
func deleteWithDependents(ctx context.Context, db *sqlx.DB, label, id string, dependents []string, owner string) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete %s: %w", label, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range dependents {
		if _, err = tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete %s dependents: %w", label, err)
		}
	}

	res, err := tx.ExecContext(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", label, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s rows affected: %w", label, err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete %s: %w", label, err)
	}
	return nil
}

func pageBounds(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return pageSize, (page - 1) * pageSize
}
