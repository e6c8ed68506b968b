// Package filestore keeps uploaded images (signatures) on local disk or in S3.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"workhours/internal/platform/config"
	"workhours/internal/platform/crypto"
)

var ErrNotFound = errors.New("stored file not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. A key that does not exist is not an error.
	Delete(ctx context.Context, key string) error
}

// New builds the configured backend, wrapped so blobs are sealed at rest when
// a data encryption key is set.
func New(ctx context.Context, cfg config.Config, sealer *crypto.Sealer) (Store, error) {
	var backend Store
	switch cfg.StorageDriver {
	case config.StorageS3:
		s3Store, err := NewS3(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		backend = s3Store
	case config.StorageLocal, "":
		backend = NewLocal(cfg.StorageDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	if sealer.Configured() {
		return Sealed{Store: backend, Sealer: sealer}, nil
	}
	return backend, nil
}

// NewKey returns "<folder>/<owner>_<uuid><ext>".
func NewKey(folder, owner, ext string) string {
	owner = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, owner)
	return path.Join(folder, fmt.Sprintf("%s_%s%s", owner, uuid.NewString(), ext))
}

func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(key))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return cleaned, nil
}

type Sealed struct {
	Store  Store
	Sealer *crypto.Sealer
}

func (s Sealed) Put(ctx context.Context, key string, data []byte, contentType string) error {
	sealed, err := s.Sealer.Seal(data)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.Store.Put(ctx, key, sealed, contentType)
}

func (s Sealed) Delete(ctx context.Context, key string) error {
	return s.Store.Delete(ctx, key)
}

func (s Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.Sealer.Open(data)
}
