package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dashsync/internal/dismiss"
)

// KV stores dismissal records in the dismissals table. Expiry lives inside
// the value, so the ttl argument of Set is not used here.
type KV struct {
	db     *sql.DB
	driver string
}

func NewKV(db *sql.DB, driver string) *KV {
	return &KV{db: db, driver: strings.ToLower(driver)}
}

func (k *KV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := k.db.QueryRowContext(ctx,
		`SELECT value FROM dismissals WHERE outlier_id = ?`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", dismiss.ErrNotFound
		}
		return "", fmt.Errorf("get dismissal: %w", err)
	}
	return value, nil
}

func (k *KV) Set(ctx context.Context, key, value string, _ time.Duration) error {
	var stmt string
	switch k.driver {
	case "mysql":
		stmt = `INSERT INTO dismissals (outlier_id, value, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`
	default:
		stmt = `INSERT INTO dismissals (outlier_id, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(outlier_id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	}
	if _, err := k.db.ExecContext(ctx, stmt, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set dismissal: %w", err)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM dismissals WHERE outlier_id = ?`, key); err != nil {
		return fmt.Errorf("delete dismissal: %w", err)
	}
	return nil
}

// Keys lists every stored outlier id, for sweeping.
func (k *KV) Keys(ctx context.Context) ([]string, error) {
	rows, err := k.db.QueryContext(ctx, `SELECT outlier_id FROM dismissals ORDER BY outlier_id`)
	if err != nil {
		return nil, fmt.Errorf("list dismissals: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dismissal: %w", err)
		}
		keys = append(keys, id)
	}
	return keys, rows.Err()
}
