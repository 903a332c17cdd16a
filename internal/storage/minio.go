package storage

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// S3Config contains the information required to talk to an S3 compatible object store.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type s3 struct {
	client *minio.Client
	bucket string
}

// NewS3 returns a Backend storing payloads in an S3 bucket, the bucket is created when missing.
func NewS3(ctx context.Context, cfg S3Config) (Backend, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not init s3 client")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "could not check bucket")
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			return nil, errors.Wrap(err, "could not create bucket")
		}
	}

	return &s3{client: client, bucket: cfg.Bucket}, nil
}

func (b *s3) Name() string {
	return "s3"
}

func (b *s3) Put(ctx context.Context, key string, r io.Reader, attrs Attributes) error {
	if err := checkKey(key); err != nil {
		return err
	}

	opts := minio.PutObjectOptions{
		ContentType:  attrs.ContentType,
		CacheControl: "no-store",
	}
	if !attrs.ExpiresAt.IsZero() {
		opts.Expires = attrs.ExpiresAt
	}

	_, err := b.client.PutObject(ctx, b.bucket, key, r, attrs.Size, opts)
	return errors.Wrap(err, "could not put object")
}

func (b *s3) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	object, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.translate(err, key)
	}

	// GetObject is lazy, Stat performs the request.
	if _, err = object.Stat(); err != nil {
		object.Close()
		return nil, b.translate(err, key)
	}
	return object, nil
}

func (b *s3) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !IsNotFound(b.translate(err, key)) {
		return errors.Wrap(err, "could not remove object")
	}
	return nil
}

func (b *s3) Cleanup() error {
	return nil
}

func (b *s3) translate(err error, key string) error {
	response := minio.ToErrorResponse(err)
	if response.Code == "NoSuchKey" || response.StatusCode == http.StatusNotFound {
		return errors.Wrap(ErrNotFound, key)
	}
	return errors.Wrap(err, "could not get object")
}
