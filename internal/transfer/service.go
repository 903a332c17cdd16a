package transfer

import (
	"context"
	"io"
	"time"

	"github.com/mdouchement/logger"
	"github.com/usman-khan12/one-shot/internal/lifecycle"
	"github.com/usman-khan12/one-shot/internal/metrics"
	"github.com/usman-khan12/one-shot/internal/ratelimit"
)

// DefaultLocatorPrefix is the path prefix of the retrieval locators.
const DefaultLocatorPrefix = "/api/download/"

type (
	// A Controller is an Iversion Of Control pattern used to init the service.
	Controller struct {
		Logger        logger.Logger
		Lifecycle     *lifecycle.Manager
		Limiter       *ratelimit.Limiter
		Metrics       *metrics.Metrics
		LocatorPrefix string
		Now           func() time.Time
	}

	// An IngestRequest is an upload coming from a client.
	IngestRequest struct {
		Body         io.Reader
		OriginalName string
		ContentType  string
		Size         int64
		ClientKey    string
	}

	// A Receipt is handed to the uploader.
	Receipt struct {
		ID         string
		Locator    string
		TTLSeconds int64
		ExpiresAt  time.Time
	}

	// A Download is a consumed object.
	Download struct {
		Payload      []byte
		OriginalName string
		ContentType  string
		Size         int64
		Checksum     string
	}

	// An Info describes a pending object.
	Info struct {
		OriginalName string
		Size         int64
		ContentType  string
		CreatedAt    time.Time
		TTLRemaining time.Duration
	}

	// A Service exposes the request-facing operations.
	Service struct {
		log       logger.Logger
		lifecycle *lifecycle.Manager
		limiter   *ratelimit.Limiter
		metrics   *metrics.Metrics
		prefix    string
		now       func() time.Time
	}
)

// New returns a new Service.
func New(c Controller) *Service {
	s := &Service{
		log:       c.Logger.WithPrefix("[transfer]"),
		lifecycle: c.Lifecycle,
		limiter:   c.Limiter,
		metrics:   c.Metrics,
		prefix:    c.LocatorPrefix,
		now:       c.Now,
	}
	if s.prefix == "" {
		s.prefix = DefaultLocatorPrefix
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Ingest admits, validates and stores an upload.
// Rate limit and validation failures happen before any object is stored.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*Receipt, error) {
	if err := s.Admit(ctx, req.ClientKey); err != nil {
		return nil, err
	}
	return s.Store(ctx, req)
}

// Admit counts an upload attempt of the client.
// It is cheap and must be called before the upload body is consumed.
func (s *Service) Admit(ctx context.Context, client string) (err error) {
	decision, err := s.limiter.Admit(ctx, client)
	if err != nil {
		err = newError(KindBackendFailure, "Upload failed", err)
		s.record("ingest", time.Now(), &err)
		return err
	}
	if !decision.Allowed {
		e := newError(KindRateLimited, "Rate limit exceeded. Please try again later.", nil)
		e.RetryAfter = decision.RetryAfter(s.now())
		err = e
		s.record("ingest", time.Now(), &err)
		return err
	}
	return nil
}

// Store validates and stores an admitted upload.
func (s *Service) Store(ctx context.Context, req IngestRequest) (receipt *Receipt, err error) {
	defer s.record("ingest", time.Now(), &err)

	if req.Body == nil {
		return nil, newError(KindInvalidRequest, "No file provided", nil)
	}

	object, err := s.lifecycle.Create(ctx, req.Body, lifecycle.Upload{
		OriginalName: req.OriginalName,
		Size:         req.Size,
		ContentType:  req.ContentType,
	})
	if err != nil {
		return nil, translate(err, s.lifecycle.MaxSize(), "Upload failed")
	}

	if _, err := s.limiter.Sweep(ctx); err != nil {
		s.log.Errorf("Rate limit sweep: %s", err)
	}

	return &Receipt{
		ID:         object.ID,
		Locator:    s.prefix + object.ID,
		TTLSeconds: int64(s.lifecycle.TTL() / time.Second),
		ExpiresAt:  object.ExpiresAt,
	}, nil
}

// Fetch consumes the object.
func (s *Service) Fetch(ctx context.Context, id string) (download *Download, err error) {
	defer s.record("fetch", time.Now(), &err)

	payload, err := s.lifecycle.Retrieve(ctx, id)
	if err != nil {
		return nil, translate(err, s.lifecycle.MaxSize(), "Download failed")
	}

	return &Download{
		Payload:      payload.Data,
		OriginalName: payload.Object.OriginalName,
		ContentType:  payload.Object.ContentType,
		Size:         payload.Object.Size,
		Checksum:     payload.Object.Checksum,
	}, nil
}

// Info describes the object without consuming it.
func (s *Service) Info(ctx context.Context, id string) (info *Info, err error) {
	defer s.record("info", time.Now(), &err)

	object, err := s.lifecycle.Inspect(ctx, id)
	if err != nil {
		return nil, translate(err, s.lifecycle.MaxSize(), "Failed to get file information")
	}

	return &Info{
		OriginalName: object.OriginalName,
		Size:         object.Size,
		ContentType:  object.ContentType,
		CreatedAt:    object.CreatedAt,
		TTLRemaining: object.Remaining(s.now()),
	}, nil
}

func (s *Service) record(operation string, start time.Time, err *error) {
	outcome := "ok"
	if *err != nil {
		kind := KindOf(*err)
		outcome = string(kind)
		if kind == KindBackendFailure {
			s.log.Errorf("%s: %+v", operation, *err)
		}
	}
	s.metrics.RecordRequest(operation, outcome, time.Since(start).Seconds())
}
