package storage

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
)

type memory struct {
	mu       sync.RWMutex
	payloads map[string][]byte
}

// NewMemory returns a Backend keeping payloads in process memory.
func NewMemory() Backend {
	return &memory{
		payloads: map[string][]byte{},
	}
}

func (b *memory) Name() string {
	return "memory"
}

func (b *memory) Put(ctx context.Context, key string, r io.Reader, _ Attributes) error {
	if err := checkKey(key); err != nil {
		return err
	}

	payload, err := io.ReadAll(&contextReader{ctx: ctx, r: r})
	if err != nil {
		return errors.Wrap(err, "could not read payload")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads[key] = payload
	return nil
}

func (b *memory) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	payload, ok := b.payloads[key]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (b *memory) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.payloads, key)
	return nil
}

func (b *memory) Cleanup() error {
	return nil
}

// Len returns the number of stored payloads of a memory backend, -1 for other backends.
func Len(b Backend) int {
	m, ok := b.(*memory)
	if !ok {
		return -1
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payloads)
}
