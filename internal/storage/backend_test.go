package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/ncw/swift/v2/swifttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	srv, err := swifttest.NewSwiftServer("localhost")
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	sw, err := NewSwift(context.Background(), SwiftConfig{
		AuthURL:   srv.AuthURL,
		Username:  swifttest.TEST_ACCOUNT,
		APIKey:    swifttest.TEST_ACCOUNT,
		Container: "oneshot",
	})
	require.NoError(t, err)

	return map[string]Backend{
		"file_system": NewFileSystem(t.TempDir()),
		"memory":      NewMemory(),
		"swift":       sw,
	}
}

func put(t *testing.T, b Backend, key, content string) {
	t.Helper()

	err := b.Put(context.Background(), key, bytes.NewBufferString(content), Attributes{
		Size:        int64(len(content)),
		ContentType: "text/plain",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
}

func TestPutAndRead(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, b.Name())
			put(t, b, key, "0123456789")

			r, err := b.Reader(context.Background(), key)
			require.NoError(t, err)
			defer r.Close()

			payload, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "0123456789", string(payload))
		})
	}
}

func TestReadMissing(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Reader(context.Background(), key)
			assert.True(t, IsNotFound(err), "%+v", err)
		})
	}
}

func TestRemove(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			put(t, b, key, "payload")

			require.NoError(t, b.Remove(context.Background(), key))
			_, err := b.Reader(context.Background(), key)
			assert.True(t, IsNotFound(err))

			// Already gone.
			assert.NoError(t, b.Remove(context.Background(), key))
		})
	}
}

func TestInvalidKey(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := b.Put(context.Background(), "../escape", bytes.NewBufferString("x"), Attributes{Size: 1})
			assert.Error(t, err)
		})
	}
}

func TestFileSystemCleanup(t *testing.T) {
	workspace := t.TempDir()
	b := NewFileSystem(workspace)

	put(t, b, "aa-first", "1")
	put(t, b, "bb-second", "2")
	require.NoError(t, b.Remove(context.Background(), "aa-first"))

	require.NoError(t, b.Cleanup())

	_, err := os.Stat(filepath.Join(workspace, "aa"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(workspace, "bb", "bb-second"))
	assert.NoError(t, err)
}

func TestFileSystemCleanupMissingWorkspace(t *testing.T) {
	b := NewFileSystem(filepath.Join(t.TempDir(), "missing"))
	assert.NoError(t, b.Cleanup())
}

func TestFileSystemCanceledPut(t *testing.T) {
	workspace := t.TempDir()
	b := NewFileSystem(workspace)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Put(ctx, key, bytes.NewBufferString("payload"), Attributes{Size: 7})
	assert.Error(t, err)

	_, err = b.Reader(context.Background(), key)
	assert.True(t, IsNotFound(err))
}

func TestMemoryLen(t *testing.T) {
	b := NewMemory()
	assert.Equal(t, 0, Len(b))

	put(t, b, key, "payload")
	assert.Equal(t, 1, Len(b))
	assert.Equal(t, -1, Len(NewFileSystem(t.TempDir())))
}

func TestS3Translate(t *testing.T) {
	b := &s3{bucket: "oneshot"}

	err := b.translate(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}, key)
	assert.True(t, IsNotFound(err))

	err = b.translate(minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}, key)
	assert.False(t, IsNotFound(err))
}
