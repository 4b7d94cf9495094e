// Package blob holds decorators and stores for large revision payloads.
package blob

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"path-backend/application/ports"
)

// Compressed zstd-encodes payloads on their way into the wrapped store
type Compressed struct {
	next    ports.BlobStore
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

var _ ports.BlobStore = (*Compressed)(nil)

// NewCompressed wraps next with zstd compression. The encoder and decoder
// are shared; EncodeAll and DecodeAll are safe for concurrent use.
func NewCompressed(next ports.BlobStore) (*Compressed, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Compressed{next: next, encoder: encoder, decoder: decoder}, nil
}

func (c *Compressed) Put(ctx context.Context, key string, data []byte) error {
	return c.next.Put(ctx, key, c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)))
}

func (c *Compressed) Get(ctx context.Context, key string) ([]byte, error) {
	compressed, err := c.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress blob %s: %w", key, err)
	}
	return data, nil
}

// Close releases the decoder's goroutines
func (c *Compressed) Close() {
	c.decoder.Close()
	c.encoder.Close()
}
