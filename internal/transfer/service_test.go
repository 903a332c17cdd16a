package transfer

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usman-khan12/one-shot/internal/database"
	"github.com/usman-khan12/one-shot/internal/lifecycle"
	"github.com/usman-khan12/one-shot/internal/metrics"
	"github.com/usman-khan12/one-shot/internal/ratelimit"
	"github.com/usman-khan12/one-shot/internal/storage"
)

type clock struct {
	sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.Lock()
	defer c.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	service *Service
	db      database.Client
	storage storage.Backend
	clock   *clock
	metrics *metrics.Metrics
}

func setup(t *testing.T) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)
	l := logger.WrapLogrus(log)

	f := &fixture{
		db:      database.NewMemory(),
		storage: storage.NewMemory(),
		clock:   &clock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.service = New(Controller{
		Logger: l,
		Lifecycle: lifecycle.New(lifecycle.Controller{
			Logger:         l,
			Database:       f.db,
			Storage:        f.storage,
			Metrics:        f.metrics,
			BackendTimeout: time.Second,
			Now:            f.clock.Now,
		}),
		Limiter: ratelimit.New(ratelimit.Controller{
			Logger: l,
			Store:  f.db,
			Now:    f.clock.Now,
		}),
		Metrics: f.metrics,
		Now:     f.clock.Now,
	})
	return f
}

func request(content, contentType, client string) IngestRequest {
	return IngestRequest{
		Body:         strings.NewReader(content),
		OriginalName: "report.pdf",
		ContentType:  contentType,
		Size:         int64(len(content)),
		ClientKey:    client,
	}
}

func kind(t *testing.T, err error) Kind {
	t.Helper()

	var e *Error
	require.True(t, errors.As(err, &e), "unexpected error: %v", err)
	return e.Kind
}

func TestIngestAndFetch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	receipt, err := f.service.Ingest(ctx, request("%PDF-1.4 content", "application/pdf", "10.0.0.1"))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, "/api/download/"+receipt.ID, receipt.Locator)
	assert.EqualValues(t, 300, receipt.TTLSeconds)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), receipt.ExpiresAt)

	download, err := f.service.Fetch(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 content"), download.Payload)
	assert.Equal(t, "report.pdf", download.OriginalName)
	assert.Equal(t, "application/pdf", download.ContentType)
	assert.EqualValues(t, 16, download.Size)
	assert.NotEmpty(t, download.Checksum)

	_, err = f.service.Fetch(ctx, receipt.ID)
	assert.Equal(t, KindNotFound, kind(t, err))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("ingest", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("fetch", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("fetch", "not_found")))
}

func TestIngestRateLimited(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < ratelimit.DefaultMax; i++ {
		_, err := f.service.Ingest(ctx, request("hello", "text/plain", "10.0.0.1"))
		require.NoError(t, err)
	}

	_, err := f.service.Ingest(ctx, request("hello", "text/plain", "10.0.0.1"))
	require.Error(t, err)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindRateLimited, e.Kind)
	assert.Equal(t, ratelimit.DefaultWindow, e.RetryAfter)

	n, err := f.db.CountObjects()
	require.NoError(t, err)
	assert.Equal(t, ratelimit.DefaultMax, n)

	// Other clients are not affected.
	_, err = f.service.Ingest(ctx, request("hello", "text/plain", "10.0.0.2"))
	assert.NoError(t, err)

	f.clock.Advance(ratelimit.DefaultWindow + time.Second)
	_, err = f.service.Ingest(ctx, request("hello", "text/plain", "10.0.0.1"))
	assert.NoError(t, err)
}

func TestAdmitThenStore(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < ratelimit.DefaultMax; i++ {
		require.NoError(t, f.service.Admit(ctx, "10.0.0.1"))
	}

	err := f.service.Admit(ctx, "10.0.0.1")
	assert.Equal(t, KindRateLimited, kind(t, err))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("ingest", "rate_limited")))

	// Store does not count against the limit.
	receipt, err := f.service.Store(ctx, request("hello", "text/plain", "10.0.0.1"))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("ingest", "ok")))

	_, err = f.service.Store(ctx, IngestRequest{ClientKey: "10.0.0.1"})
	assert.Equal(t, KindInvalidRequest, kind(t, err))
}

func TestIngestValidation(t *testing.T) {
	tests := []struct {
		name string
		req  IngestRequest
		kind Kind
	}{
		{
			name: "empty",
			req:  request("", "text/plain", "c"),
			kind: KindInvalidRequest,
		},
		{
			name: "no body",
			req:  IngestRequest{OriginalName: "a.txt", ContentType: "text/plain", ClientKey: "c"},
			kind: KindInvalidRequest,
		},
		{
			name: "too large",
			req: IngestRequest{
				Body:         strings.NewReader("x"),
				OriginalName: "big.zip",
				ContentType:  "application/zip",
				Size:         lifecycle.DefaultMaxSize + 1,
				ClientKey:    "c",
			},
			kind: KindTooLarge,
		},
		{
			name: "type",
			req:  request("MZ", "application/x-msdownload", "c"),
			kind: KindTypeNotAllowed,
		},
		{
			name: "mismatch",
			req: IngestRequest{
				Body:         strings.NewReader("short"),
				OriginalName: "a.txt",
				ContentType:  "text/plain",
				Size:         42,
				ClientKey:    "c",
			},
			kind: KindInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)

			_, err := f.service.Ingest(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, kind(t, err))
			assert.True(t, tt.kind.Validation())

			n, err := f.db.CountObjects()
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Zero(t, storage.Len(f.storage))
		})
	}
}

func TestTooLargeMessage(t *testing.T) {
	f := setup(t)

	_, err := f.service.Ingest(context.Background(), IngestRequest{
		Body:         strings.NewReader("x"),
		OriginalName: "big.zip",
		ContentType:  "application/zip",
		Size:         lifecycle.DefaultMaxSize + 1,
		ClientKey:    "c",
	})

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "File too large. Maximum size is 50 MiB.", e.Message)
}

func TestFetchConcurrently(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	receipt, err := f.service.Ingest(ctx, request("only once", "text/plain", "c"))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		notFound int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := f.service.Fetch(ctx, receipt.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case KindOf(err) == KindNotFound:
				notFound++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 19, notFound)
}

func TestInfo(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	receipt, err := f.service.Ingest(ctx, request("hello", "text/plain", "c"))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	info, err := f.service.Info(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", info.OriginalName)
	assert.EqualValues(t, 5, info.Size)
	assert.Equal(t, "text/plain", info.ContentType)
	assert.Equal(t, 4*time.Minute, info.TTLRemaining)

	// Info does not consume.
	_, err = f.service.Fetch(ctx, receipt.ID)
	require.NoError(t, err)

	_, err = f.service.Info(ctx, receipt.ID)
	assert.Equal(t, KindNotFound, kind(t, err))

	_, err = f.service.Info(ctx, "unknown")
	assert.Equal(t, KindNotFound, kind(t, err))
}

func TestExpiry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	fetched, err := f.service.Ingest(ctx, request("a", "text/plain", "c"))
	require.NoError(t, err)
	pending, err := f.service.Ingest(ctx, request("b", "text/plain", "c"))
	require.NoError(t, err)

	_, err = f.service.Fetch(ctx, fetched.ID)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)

	_, err = f.service.Fetch(ctx, pending.ID)
	assert.Equal(t, KindExpired, kind(t, err))
	_, err = f.service.Info(ctx, pending.ID)
	assert.Equal(t, KindExpired, kind(t, err))
	_, err = f.service.Info(ctx, fetched.ID)
	assert.Equal(t, KindExpired, kind(t, err))

	assert.Zero(t, storage.Len(f.storage))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindBackendFailure, KindOf(errors.New("boom")))
	assert.Equal(t, KindExpired, KindOf(errors.Wrap(newError(KindExpired, "gone", nil), "fetch")))
	assert.False(t, KindNotFound.Validation())
	assert.False(t, KindRateLimited.Validation())
}

func TestTranslateHidesCause(t *testing.T) {
	err := translate(errors.New("disk on fire"), lifecycle.DefaultMaxSize, "Download failed")

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindBackendFailure, e.Kind)
	assert.Equal(t, "Download failed", e.Message)
}
