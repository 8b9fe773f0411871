package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey rejects access keys that would escape the managed root.
var ErrInvalidKey = errors.New("invalid access key")

// Local keeps drive bytes under a managed directory.
type Local struct {
	root    string
	baseURL string
}

// NewLocal prepares root and returns a backend serving URLs under baseURL/files.
func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create drive dir %s: %w", root, err)
	}
	return &Local{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (l *Local) Internal() bool { return true }

// OriginalKey ignores ext; local keys are bare uuids.
func (l *Local) OriginalKey(string) string { return uuid.NewString() }

func (l *Local) ThumbnailKey(string) string { return "thumbnail-" + uuid.NewString() }

// URL is the locally served address of key.
func (l *Local) URL(key string) string {
	return l.baseURL + "/files/" + key
}

func (l *Local) StoreFromPath(ctx context.Context, key, path, mediaType, filename string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()
	return l.write(ctx, key, src)
}

func (l *Local) StoreFromBuffer(ctx context.Context, key string, data []byte, mediaType, filename string) (string, error) {
	return l.write(ctx, key, bytes.NewReader(data))
}

// write goes through a temp file, fsync and rename so readers never see partial content.
func (l *Local) write(ctx context.Context, key string, r io.Reader) (string, error) {
	full, err := l.Path(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp := full + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("fsync %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", key, err)
	}
	return l.URL(key), nil
}

// Delete removes key; a missing file is not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	full, err := l.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Path resolves key inside the managed root.
func (l *Local) Path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", ErrInvalidKey
	}
	return filepath.Join(l.root, key), nil
}
