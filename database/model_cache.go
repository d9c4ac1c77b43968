package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/angas/solarforecast-go/cache"
)

// ModelStore is a cache.Store backed by the model_cache table.
type ModelStore struct {
	db *Database
}

func (d *Database) ModelStore() *ModelStore {
	return &ModelStore{db: d}
}

func (s *ModelStore) Load(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.read.QueryRowContext(ctx, `
		SELECT blob FROM model_cache WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching cached model %s: %w", key, err)
	}
	return blob, nil
}

func (s *ModelStore) Save(ctx context.Context, key string, data []byte) error {
	s.db.logger.Debug("saving cached model", "key", key, "bytes", len(data))

	_, err := s.db.write.ExecContext(ctx, `
		INSERT INTO model_cache (key, blob, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			blob = excluded.blob,
			updated_at = excluded.updated_at`,
		key,
		data,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving cached model %s: %w", key, err)
	}
	return nil
}

func (s *ModelStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.write.ExecContext(ctx, `DELETE FROM model_cache WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting cached model %s: %w", key, err)
	}
	return nil
}
