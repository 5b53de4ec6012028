package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// KVStore keeps small string values (consent flags and the like) in the
// kv_store table.
type KVStore struct {
	db     *sql.DB
	upsert string
}

// NewKVStore picks the upsert dialect for the given driver.
func NewKVStore(db *sql.DB, driver string) (*KVStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	var upsert string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		upsert = `INSERT INTO kv_store (kv_key, kv_value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(kv_key) DO UPDATE SET kv_value = excluded.kv_value, updated_at = excluded.updated_at`
	case "mysql":
		upsert = `INSERT INTO kv_store (kv_key, kv_value, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE kv_value = VALUES(kv_value), updated_at = VALUES(updated_at)`
	default:
		return nil, fmt.Errorf("unsupported driver for kv store: %s", driver)
	}
	return &KVStore{db: db, upsert: upsert}, nil
}

// Get returns the value stored under key. The bool reports presence.
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT kv_value FROM kv_store WHERE kv_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get kv %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.upsert, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set kv %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix and reports how many
// rows went away. The prefix must not contain LIKE wildcards.
func (s *KVStore) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE kv_key LIKE ?`, prefix+"%")
	if err != nil {
		return 0, fmt.Errorf("delete kv prefix %s: %w", prefix, err)
	}
	return res.RowsAffected()
}
