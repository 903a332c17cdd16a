package lifecycle

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/usman-khan12/one-shot/internal/database"
	"github.com/usman-khan12/one-shot/internal/events"
	"github.com/usman-khan12/one-shot/internal/metrics"
	"github.com/usman-khan12/one-shot/internal/model"
	"github.com/usman-khan12/one-shot/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/usman-khan12/one-shot/internal/lifecycle")

// Purge reasons.
const (
	reasonConsumed = "consumed"
	reasonExpired  = "expired"
)

type (
	// A Controller is an Iversion Of Control pattern used to init the manager.
	Controller struct {
		Logger    logger.Logger
		Database  database.Client
		Storage   storage.Backend
		Publisher events.Publisher
		Metrics   *metrics.Metrics

		MaxSize        int64
		TTL            time.Duration
		AllowedTypes   []string
		BackendTimeout time.Duration
		// PublishTimeout bounds the delivery of one event.
		PublishTimeout time.Duration
		// TombstoneRetention is how long a removed identifier is remembered after its expiry.
		TombstoneRetention time.Duration

		Now   func() time.Time
		NewID func() (string, error)
	}

	// An Upload describes an incoming payload.
	Upload struct {
		OriginalName string
		Size         int64
		ContentType  string
	}

	// A Payload is the content of a consumed object.
	Payload struct {
		Object *model.Object
		Data   []byte
	}

	// A Manager orchestrates the life of the objects: creation, single retrieval and expiry.
	Manager struct {
		log       logger.Logger
		db        database.Client
		storage   storage.Backend
		publisher events.Publisher
		metrics   *metrics.Metrics

		maxSize        int64
		ttl            time.Duration
		allowed        typeSet
		timeout        time.Duration
		publishTimeout time.Duration
		retention      time.Duration

		now   func() time.Time
		newID func() (string, error)
	}
)

// New returns a new Manager.
func New(c Controller) *Manager {
	m := &Manager{
		log:            c.Logger.WithPrefix("[lifecycle]"),
		db:             c.Database,
		storage:        c.Storage,
		publisher:      c.Publisher,
		metrics:        c.Metrics,
		maxSize:        c.MaxSize,
		ttl:            c.TTL,
		allowed:        newTypeSet(c.AllowedTypes),
		timeout:        c.BackendTimeout,
		publishTimeout: c.PublishTimeout,
		retention:      c.TombstoneRetention,
		now:            c.Now,
		newID:          c.NewID,
	}

	if m.publisher == nil {
		m.publisher = events.Discard()
	}
	if m.maxSize <= 0 {
		m.maxSize = DefaultMaxSize
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.publishTimeout <= 0 {
		m.publishTimeout = DefaultPublishTimeout
	}
	if m.retention <= 0 {
		m.retention = DefaultTombstoneRetention
	}
	if len(c.AllowedTypes) == 0 {
		m.allowed = newTypeSet(DefaultAllowedTypes)
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = func() (string, error) {
			id, err := uuid.NewV4()
			return id.String(), err
		}
	}
	return m
}

// TTL returns the time to live of the objects.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// MaxSize returns the maximum accepted payload size.
func (m *Manager) MaxSize() int64 {
	return m.maxSize
}

// Validate checks the upload against the policy without side effect.
func (m *Manager) Validate(u Upload) error {
	switch {
	case u.Size <= 0:
		return ErrEmpty
	case u.Size > m.maxSize:
		return ErrTooLarge
	case !m.allowed.allows(u.ContentType):
		return ErrTypeNotAllowed
	}
	return nil
}

// Create stores the payload read from r and registers it.
// The upload is validated before the backend is touched and nothing is registered
// when the backend write fails.
func (m *Manager) Create(ctx context.Context, r io.Reader, u Upload) (object *model.Object, err error) {
	ctx, span := tracer.Start(ctx, "lifecycle.Create", trace.WithAttributes(
		attribute.Int64("object.size", u.Size),
		attribute.String("object.content_type", u.ContentType),
	))
	defer func() { end(span, err) }()

	if err = m.Validate(u); err != nil {
		return nil, err
	}

	id, err := m.newID()
	if err != nil {
		return nil, errors.Wrap(err, "could not generate object id")
	}
	span.SetAttributes(attribute.String("object.id", id))

	now := m.now()
	object = &model.Object{
		ID:           id,
		OriginalName: u.OriginalName,
		Size:         u.Size,
		ContentType:  u.ContentType,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
	}

	// One extra byte is enough to detect a payload longer than declared.
	h := md5.New()
	cr := &countingReader{r: io.TeeReader(io.LimitReader(r, u.Size+1), h)}

	bctx, cancel := m.backendContext(ctx)
	err = m.storage.Put(bctx, id, cr, storage.Attributes{
		Size:        u.Size,
		ContentType: u.ContentType,
		ExpiresAt:   object.ExpiresAt,
	})
	cancel()
	if err != nil {
		m.discard(ctx, object)
		return nil, backendError("put", err)
	}

	if cr.n != u.Size {
		m.discard(ctx, object)
		return nil, errors.Wrapf(ErrSizeMismatch, "declared %d, read %d", u.Size, cr.n)
	}
	object.Checksum = hex.EncodeToString(h.Sum(nil))

	if err = m.db.CreateObject(object); err != nil {
		m.discard(ctx, object)
		return nil, errors.Wrap(err, "could not register object")
	}

	m.metrics.RecordUpload(object.Size)
	m.publish(ctx, events.ObjectCreated, object)
	m.log.Infof("Stored %s (%s, %s) until %s", id, humanize.IBytes(uint64(object.Size)), object.ContentType, object.ExpiresAt.Format(time.RFC3339))
	return object, nil
}

// Retrieve returns the payload of the object and purges it.
// The registry take is the single point of arbitration: among concurrent
// callers only one gets the payload, the others get ErrNotFound.
// A consumed object is never restored, even if the transfer fails afterwards.
func (m *Manager) Retrieve(ctx context.Context, id string) (payload *Payload, err error) {
	ctx, span := tracer.Start(ctx, "lifecycle.Retrieve", trace.WithAttributes(attribute.String("object.id", id)))
	defer func() { end(span, err) }()

	object, err := m.db.TakeObject(id)
	if m.db.IsNotFound(err) {
		return nil, m.missing(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not take object")
	}

	if object.Expired(m.now()) {
		m.release(ctx, object)
		m.expired(ctx, object)
		return nil, ErrExpired
	}

	data, err := m.read(ctx, object)
	m.release(ctx, object)
	if storage.IsNotFound(err) {
		m.log.Errorf("Payload of %s is missing", id)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, backendError("get", err)
	}

	m.metrics.RecordPurge(reasonConsumed)
	m.metrics.RecordDownload(object.Size)
	m.publish(ctx, events.ObjectConsumed, object)
	m.log.Infof("Consumed %s", id)
	return &Payload{Object: object, Data: data}, nil
}

// Inspect returns the meta data of the object without consuming it.
// An expired object is purged on the way.
func (m *Manager) Inspect(ctx context.Context, id string) (object *model.Object, err error) {
	ctx, span := tracer.Start(ctx, "lifecycle.Inspect", trace.WithAttributes(attribute.String("object.id", id)))
	defer func() { end(span, err) }()

	object, err = m.db.FindObject(id)
	if m.db.IsNotFound(err) {
		return nil, m.missing(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not find object")
	}

	if object.Expired(m.now()) {
		m.expire(ctx, object)
		return nil, ErrExpired
	}
	return object, nil
}

// Sweep purges all the objects expired at now and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (n int, err error) {
	ctx, span := tracer.Start(ctx, "lifecycle.Sweep")
	defer func() { end(span, err) }()

	objects, err := m.db.ExpiredObjects(now)
	if err != nil {
		return 0, errors.Wrap(err, "could not list expired objects")
	}

	for _, object := range objects {
		if err = ctx.Err(); err != nil {
			return n, err
		}
		if m.expire(ctx, object) {
			n++
		}
	}
	span.SetAttributes(attribute.Int("objects.purged", n))

	if err = m.retryRemovals(ctx, now); err != nil {
		return n, err
	}

	if pruned, err := m.db.DeleteTombstones(now.Add(-m.retention)); err != nil {
		m.log.Errorf("Could not prune tombstones: %s", err)
	} else if pruned > 0 {
		m.log.Debugf("Pruned %d tombstones", pruned)
	}

	if count, err := m.db.CountObjects(); err == nil {
		m.metrics.SetObjects(count)
	}

	if err = m.storage.Cleanup(); err != nil {
		m.log.Errorf("Storage cleanup: %s", err)
	}
	return n, nil
}

// missing tells apart an unknown or consumed identifier from one past its TTL.
// Consumed and unknown identifiers are indistinguishable.
func (m *Manager) missing(id string) error {
	tombstone, err := m.db.FindTombstone(id)
	if err != nil {
		if !m.db.IsNotFound(err) {
			m.log.Errorf("Could not find tombstone %s: %s", id, err)
		}
		return ErrNotFound
	}

	if tombstone.Expired(m.now()) {
		return ErrExpired
	}
	return ErrNotFound
}

// expire removes the payload then the registry entry of an expired object.
// The entry is kept when the payload removal fails so that a later sweep retries.
// It returns true if this call removed the entry.
func (m *Manager) expire(ctx context.Context, object *model.Object) bool {
	if !m.removePayload(ctx, object.ID) {
		return false
	}

	_, err := m.db.TakeObject(object.ID)
	if m.db.IsNotFound(err) {
		return false // Raced away.
	}
	if err != nil {
		m.log.Errorf("Could not remove %s: %s", object.ID, err)
		return false
	}

	m.settle(object)
	m.expired(ctx, object)
	return true
}

// release removes the payload of a taken object.
// On failure the tombstone stays pending and the sweep retries the removal.
func (m *Manager) release(ctx context.Context, object *model.Object) {
	if m.removePayload(ctx, object.ID) {
		m.settle(object)
	}
}

// settle records that the payload of a removed object is gone.
func (m *Manager) settle(object *model.Object) {
	err := m.db.SaveTombstone(&model.Tombstone{
		ID:             object.ID,
		ExpiresAt:      object.ExpiresAt,
		PayloadRemoved: true,
	})
	if err != nil {
		m.log.Errorf("Could not settle tombstone %s: %s", object.ID, err)
	}
}

// discard removes the payload of an object that never got registered.
// A failed removal is recorded as a pending tombstone.
func (m *Manager) discard(ctx context.Context, object *model.Object) {
	if m.removePayload(ctx, object.ID) {
		return
	}

	err := m.db.SaveTombstone(&model.Tombstone{ID: object.ID, ExpiresAt: object.ExpiresAt})
	if err != nil {
		m.log.Errorf("Could not record pending removal of %s: %s", object.ID, err)
	}
}

// retryRemovals removes the payloads left behind by failed removals.
// Only tombstones past their TTL are retried so that an in-flight retrieval keeps its payload.
func (m *Manager) retryRemovals(ctx context.Context, now time.Time) error {
	pending, err := m.db.PendingTombstones()
	if err != nil {
		m.log.Errorf("Could not list pending removals: %s", err)
		return nil
	}

	var removed int
	for _, tombstone := range pending {
		if err = ctx.Err(); err != nil {
			return err
		}
		if !tombstone.Expired(now.Add(-m.timeout)) {
			continue
		}
		if !m.removePayload(ctx, tombstone.ID) {
			continue
		}

		err = m.db.SaveTombstone(&model.Tombstone{
			ID:             tombstone.ID,
			ExpiresAt:      tombstone.ExpiresAt,
			PayloadRemoved: true,
		})
		if err != nil {
			m.log.Errorf("Could not settle tombstone %s: %s", tombstone.ID, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		m.log.Infof("Removed %d leftover payloads", removed)
	}
	return nil
}

func (m *Manager) expired(ctx context.Context, object *model.Object) {
	m.metrics.RecordPurge(reasonExpired)
	m.publish(ctx, events.ObjectExpired, object)
	m.log.Infof("Expired %s", object.ID)
}

func (m *Manager) read(ctx context.Context, object *model.Object) ([]byte, error) {
	bctx, cancel := m.backendContext(ctx)
	defer cancel()

	rc, err := m.storage.Reader(bctx, object.ID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, object.Size+1))
	if err != nil {
		return nil, errors.Wrap(err, "could not read payload")
	}
	if int64(len(data)) != object.Size {
		return nil, errors.Wrapf(ErrSizeMismatch, "registered %d, read %d", object.Size, len(data))
	}
	return data, nil
}

// removePayload is best effort, a missing payload is not an error.
// Cleanup outlives the request, a disconnected client must not leave remnants.
func (m *Manager) removePayload(ctx context.Context, id string) bool {
	bctx, cancel := m.backendContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := m.storage.Remove(bctx, id); err != nil {
		m.log.Errorf("Could not remove payload %s: %s", id, err)
		return false
	}
	return true
}

// publish delivers the event within the publish timeout, a failure is only logged.
func (m *Manager) publish(ctx context.Context, t events.Type, object *model.Object) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.publishTimeout)
	defer cancel()

	err := m.publisher.Publish(pctx, events.Event{
		Type:        t,
		ObjectID:    object.ID,
		Size:        object.Size,
		ContentType: object.ContentType,
		OccurredAt:  m.now(),
	})
	if err != nil {
		m.log.Errorf("Could not publish %s of %s: %s", t, object.ID, err)
	}
}

func (m *Manager) backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)
	return n, err
}
