package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"storefront/internal/config"
)

// ObjectStorage maps every key to one object in an S3-compatible bucket.
type ObjectStorage struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewObjectStorage(ctx context.Context, cfg config.ObjectStoreConfig, prefix string) (*ObjectStorage, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectStorage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.ReplaceAll(prefix, ":", "/"),
	}, nil
}

func (o *ObjectStorage) objectKey(key string) string {
	return o.prefix + key + ".json"
}

func (o *ObjectStorage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, o.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return data, nil
}

func (o *ObjectStorage) Set(ctx context.Context, key string, value []byte) error {
	_, err := o.client.PutObject(ctx, o.bucket, o.objectKey(key), bytes.NewReader(value), int64(len(value)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (o *ObjectStorage) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := o.client.RemoveObject(ctx, o.bucket, o.objectKey(key), minio.RemoveObjectOptions{}); err != nil {
			if minio.ToErrorResponse(err).Code == "NoSuchKey" {
				continue
			}
			return err
		}
	}
	return nil
}

func (o *ObjectStorage) Close() error {
	return nil
}
