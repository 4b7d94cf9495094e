package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"path-backend/application/ports"
	pkgerrors "path-backend/pkg/errors"
)

// Blobs stores opaque payloads in the blob table
type Blobs struct {
	db *sql.DB
}

var _ ports.BlobStore = (*Blobs)(nil)

// NewBlobs creates a blob store on an opened and migrated database
func NewBlobs(db *sql.DB) *Blobs {
	return &Blobs{db: db}
}

func (b *Blobs) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO blob (key, data) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET data = excluded.data`, key, data)
	if err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

func (b *Blobs) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM blob WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ContentNotFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return data, nil
}
