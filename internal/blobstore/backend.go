// Package blobstore persists drive file bytes. Exactly one Backend is chosen
// per deployment: Local writes under a managed directory, Object uploads to an
// S3-compatible bucket.
package blobstore

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/abduss/driveingest/internal/config"
	"github.com/minio/minio-go/v7"
)

// CacheControl is attached to every object-storage upload.
const CacheControl = "max-age=31536000, immutable"

// Backend stores and deletes drive bytes under access keys.
type Backend interface {
	// Internal reports whether bytes live on the local filesystem.
	Internal() bool
	OriginalKey(ext string) string
	ThumbnailKey(ext string) string
	StoreFromPath(ctx context.Context, key, path, mediaType, filename string) (string, error)
	StoreFromBuffer(ctx context.Context, key string, data []byte, mediaType, filename string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New selects the backend named by the drive configuration.
func New(cfg config.Config, client *minio.Client) (Backend, error) {
	switch cfg.Drive.Storage {
	case config.StorageLocal:
		return NewLocal(cfg.Drive.LocalDir, cfg.Drive.URL)
	case config.StorageObject:
		if client == nil {
			return nil, fmt.Errorf("object storage selected without a client")
		}
		return NewObject(client, cfg.ObjectStorage), nil
	default:
		return nil, fmt.Errorf("unknown drive storage %q", cfg.Drive.Storage)
	}
}

// ContentDisposition renders an inline disposition hint for filename.
func ContentDisposition(filename string) string {
	if filename == "" {
		return ""
	}
	if v := mime.FormatMediaType("inline", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "inline"
}

// normalizeContentType maps types object stores may not register.
func normalizeContentType(mediaType string) string {
	if strings.EqualFold(mediaType, "image/apng") {
		return "image/png"
	}
	return mediaType
}
