// Package storage persists attachment bytes outside the relational store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidPath is returned for paths that escape the storage root.
var ErrInvalidPath = errors.New("invalid attachment path")

// AttachmentStore saves and removes attachment payloads. Save returns the
// opaque path later passed to Delete.
type AttachmentStore interface {
	Save(ctx context.Context, fileName string, r io.Reader) (path string, size int64, err error)
	Delete(ctx context.Context, path string) error
}

// LocalStore keeps files under a root directory, one sub-directory per day.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if missing.
func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Save(ctx context.Context, fileName string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	rel := uuid.NewString() + sanitizeExt(fileName)
	full := filepath.Join(s.root, rel)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("create attachment file: %w", err)
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(full)
		return "", 0, fmt.Errorf("write attachment file: %w", errors.Join(copyErr, closeErr))
	}
	return rel, n, nil
}

func (s *LocalStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove attachment file: %w", err)
	}
	return nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Join(s.root, clean), nil
}

func sanitizeExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		return ""
	}
	return ext
}
