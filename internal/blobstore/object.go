package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abduss/driveingest/internal/config"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Object uploads drive bytes to an S3-compatible bucket.
type Object struct {
	client  objectClient
	bucket  string
	prefix  string
	baseURL string
}

// NewObject builds an object-storage backend from deployment configuration.
func NewObject(client objectClient, cfg config.ObjectStorageConfig) *Object {
	return &Object{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		baseURL: cfg.PublicBaseURL(),
	}
}

func (o *Object) Internal() bool { return false }

func (o *Object) OriginalKey(ext string) string {
	if ext != "" {
		ext = "." + strings.TrimPrefix(ext, ".")
	}
	return o.key(uuid.NewString() + ext)
}

func (o *Object) ThumbnailKey(ext string) string {
	return o.key(fmt.Sprintf("thumbnail-%s.%s", uuid.NewString(), strings.TrimPrefix(ext, ".")))
}

func (o *Object) key(name string) string {
	if o.prefix == "" {
		return name
	}
	return o.prefix + "/" + name
}

// URL is the public address of key.
func (o *Object) URL(key string) string {
	return o.baseURL + "/" + key
}

func (o *Object) StoreFromPath(ctx context.Context, key, path, mediaType, filename string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	return o.put(ctx, key, f, stat.Size(), mediaType, filename)
}

func (o *Object) StoreFromBuffer(ctx context.Context, key string, data []byte, mediaType, filename string) (string, error) {
	return o.put(ctx, key, bytes.NewReader(data), int64(len(data)), mediaType, filename)
}

func (o *Object) put(ctx context.Context, key string, r io.Reader, size int64, mediaType, filename string) (string, error) {
	opts := minio.PutObjectOptions{
		ContentType:        normalizeContentType(mediaType),
		CacheControl:       CacheControl,
		ContentDisposition: ContentDisposition(filename),
	}
	if _, err := o.client.PutObject(ctx, o.bucket, key, r, size, opts); err != nil {
		return "", fmt.Errorf("store object %s: %w", key, err)
	}
	return o.URL(key), nil
}

func (o *Object) Delete(ctx context.Context, key string) error {
	if err := o.client.RemoveObject(ctx, o.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
