package storage

import (
	"context"
	"io"
	fspkg "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/usman-khan12/one-shot/internal/xpath"
)

type fs struct {
	workspace string
}

// NewFileSystem returns a new File System backend.
func NewFileSystem(workspace string) Backend {
	return &fs{
		workspace: filepath.Clean(workspace),
	}
}

func (b *fs) Name() string {
	return "file_system"
}

func (b *fs) Put(ctx context.Context, key string, r io.Reader, _ Attributes) error {
	if err := checkKey(key); err != nil {
		return err
	}

	filename := b.filename(key)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.Wrap(err, "could not create directory")
	}

	// Written aside then renamed, a reader never sees a partial payload.
	tmp, err := os.CreateTemp(filepath.Dir(filename), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "could not create file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err = io.Copy(tmp, &contextReader{ctx: ctx, r: r}); err != nil {
		return errors.Wrap(err, "could not write file")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "could not sync file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "could not close file")
	}

	err = os.Rename(tmp.Name(), filename)
	return errors.Wrap(err, "could not rename file")
}

func (b *fs) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc, err := os.Open(b.filename(key))
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrNotFound, key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not open file")
	}
	return rc, nil
}

func (b *fs) Remove(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	err := os.Remove(b.filename(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "could not delete file")
	}
	return nil
}

// Cleanup removes the empty shard directories.
func (b *fs) Cleanup() error {
	// Find empty directories.
	//
	stats := map[string]int{}
	err := filepath.Walk(b.workspace, func(path string, info fspkg.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path == b.workspace {
				return nil
			}
			stats[path] += 0
			return nil
		}

		trimmedpath := strings.TrimPrefix(path, b.workspace)
		base := b.workspace

		for _, segment := range strings.Split(filepath.Dir(trimmedpath), string(os.PathSeparator)) {
			base = filepath.Join(base, segment)
			if base == b.workspace {
				continue
			}
			stats[base]++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "cleanup")
	}

	// Remove empty directories.
	//
	for dirname, count := range stats {
		if count == 0 {
			os.Remove(dirname)
		}
	}
	return nil
}

func (b *fs) filename(key string) string {
	return filepath.Join(b.workspace, filepath.FromSlash(xpath.Shard(key)))
}

// A contextReader stops reading once its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
