package storage

import (
	"context"
	"io"
	"strconv"

	"github.com/ncw/swift/v2"
	"github.com/pkg/errors"
)

// SwiftConfig contains the information required to talk to an OpenStack Swift cluster.
type SwiftConfig struct {
	AuthURL   string
	Username  string
	APIKey    string
	Tenant    string
	Domain    string
	Region    string
	Container string
}

type swft struct {
	conn      *swift.Connection
	container string
}

// NewSwift returns a Backend storing payloads in a Swift container, the container is created when missing.
func NewSwift(ctx context.Context, cfg SwiftConfig) (Backend, error) {
	conn := &swift.Connection{
		AuthUrl:  cfg.AuthURL,
		UserName: cfg.Username,
		ApiKey:   cfg.APIKey,
		Tenant:   cfg.Tenant,
		Domain:   cfg.Domain,
		Region:   cfg.Region,
	}

	if err := conn.Authenticate(ctx); err != nil {
		return nil, errors.Wrap(err, "could not authenticate to swift")
	}

	if err := conn.ContainerCreate(ctx, cfg.Container, swift.Headers{}); err != nil {
		return nil, errors.Wrap(err, "could not create container")
	}

	return &swft{conn: conn, container: cfg.Container}, nil
}

func (b *swft) Name() string {
	return "swift"
}

func (b *swft) Put(ctx context.Context, key string, r io.Reader, attrs Attributes) error {
	if err := checkKey(key); err != nil {
		return err
	}

	headers := swift.Headers{}
	if !attrs.ExpiresAt.IsZero() {
		// The cluster expirer removes forgotten payloads on its own.
		headers["X-Delete-At"] = strconv.FormatInt(attrs.ExpiresAt.Unix(), 10)
	}

	_, err := b.conn.ObjectPut(ctx, b.container, key, r, false, "", attrs.ContentType, headers)
	return errors.Wrap(err, "could not put object")
}

func (b *swft) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	file, _, err := b.conn.ObjectOpen(ctx, b.container, key, false, nil)
	if errors.Cause(err) == swift.ObjectNotFound {
		return nil, errors.Wrap(ErrNotFound, key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not open object")
	}
	return file, nil
}

func (b *swft) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	err := b.conn.ObjectDelete(ctx, b.container, key)
	if err != nil && errors.Cause(err) != swift.ObjectNotFound {
		return errors.Wrap(err, "could not delete object")
	}
	return nil
}

func (b *swft) Cleanup() error {
	return nil
}
