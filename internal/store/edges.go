package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DropNetworkTable drops kind's edge table if it exists, so a fresh
// computation can rebuild it from scratch.
func DropNetworkTable(ctx context.Context, db *sql.DB, kind Kind) error {
	_, err := db.ExecContext(ctx, `drop table if exists `+kind.EdgeTable())
	return err
}

// CreateNetworkTable (re)creates kind's edge table with the standard
// (user_1, user_2, weight) schema, keyed by (user_1, user_2).
func CreateNetworkTable(ctx context.Context, db *sql.DB, kind Kind) error {
	_, err := db.ExecContext(ctx, networkTableSQL(kind.EdgeTable()))
	return err
}

// EnsureIndex runs a `create index if not exists` (or any other idempotent
// DDL) statement against db.
func EnsureIndex(ctx context.Context, db *sql.DB, ddl string) error {
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// AppendLocalNetwork copies every row of the worker-local temporary table
// `local_network` into kind's target edge table, and must be called while
// holding the store's writer mutex.
func AppendLocalNetwork(ctx context.Context, db *sql.DB, kind Kind) error {
	_, err := db.ExecContext(ctx, `
		insert or ignore into `+kind.EdgeTable()+` select * from local_network
	`)
	return err
}

// HasNetworkTable reports whether kind's edge table has been computed.
func HasNetworkTable(ctx context.Context, db *sql.DB, kind Kind) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx, `
		select name from sqlite_master where type = 'table' and name = ?
	`, kind.EdgeTable()).Scan(&name)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// EdgeRows streams every row of kind's edge table.
func EdgeRows(ctx context.Context, db *sql.DB, kind Kind) (*sql.Rows, error) {
	return db.QueryContext(ctx, `select user_1, user_2, weight from `+kind.EdgeTable())
}

// CreateWorkerTempTables creates the per-connection temporary tables a
// coordination-engine worker populates before each batch's self-join:
// `user_id` (the candidate batch) and `local_network` (the batch's partial
// edge output, in the same schema as the target edge table).
func CreateWorkerTempTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		create temporary table if not exists user_id (user_id text primary key);
		create temporary table if not exists local_network (
			user_1 text, user_2 text, weight integer
		);
	`)
	return err
}

// LoadBatch clears and repopulates the worker's temporary user_id table
// with the given batch of candidate users.
func LoadBatch(ctx context.Context, tx *sql.Tx, userIDs []string) error {
	if _, err := tx.ExecContext(ctx, `delete from user_id`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from local_network`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `insert into user_id values (?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range userIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("store: load batch: %w", err)
		}
	}
	return nil
}
