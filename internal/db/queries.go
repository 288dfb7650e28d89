package db

import (
	"context"
	"database/sql"
	"time"
)

// GetValue returns the payload stored under key.
// found is false when the key has never been written.
func GetValue(ctx context.Context, db *sql.DB, key string) (payload []byte, found bool, err error) {
	row := db.QueryRowContext(ctx, `SELECT payload FROM kv WHERE key = ?`, key)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

// PutValue inserts or replaces the payload stored under key.
func PutValue(ctx context.Context, db *sql.DB, key string, payload []byte) error {
	query := `
		INSERT INTO kv (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query, key, payload, time.Now().Unix())
	return err
}

// DeleteValue removes key. Returns false if it did not exist.
func DeleteValue(ctx context.Context, db *sql.DB, key string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
