package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements Store on the local filesystem. The O_EXCL create
// makes Put atomic per path: under concurrent writes to the same
// (key, variant) the kernel guarantees a single winner.
type LocalStore struct {
	root string
}

// NewLocalStore creates the variant subdirectories under root and returns
// a ready-to-use LocalStore.
func NewLocalStore(root string) (*LocalStore, error) {
	for _, v := range []Variant{VariantFull, VariantThumbnail} {
		if err := os.MkdirAll(filepath.Join(root, string(v)), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string, variant Variant) (string, error) {
	// Keys are hex identifiers minted by the authority; reject anything
	// that could escape the storage root.
	if key == "" || strings.ContainsAny(key, "/\\.") {
		return "", ErrNotFound
	}
	return filepath.Join(s.root, filepath.FromSlash(ObjectName(key, variant))), nil
}

// Put writes data to disk, failing with ErrAlreadyExists if the target
// path is already written.
func (s *LocalStore) Put(ctx context.Context, key string, variant Variant, data []byte, contentType string) error {
	path, err := s.path(key, variant)
	if err != nil {
		return fmt.Errorf("put %s/%s: invalid key", variant, key)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create %q: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close %q: %w", path, err)
	}
	return nil
}

// Get reads the object back, deriving the content type from the fixed
// JPEG extension and LastModified from the file mtime.
func (s *LocalStore) Get(ctx context.Context, key string, variant Variant) (*Object, error) {
	path, err := s.path(key, variant)
	if err != nil {
		return nil, ErrNotFound
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	return &Object{
		Data:         data,
		ContentType:  "image/jpeg",
		LastModified: info.ModTime(),
	}, nil
}

// Delete removes the object; deleting a missing object is not an error.
func (s *LocalStore) Delete(ctx context.Context, key string, variant Variant) error {
	path, err := s.path(key, variant)
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", path, err)
	}
	return nil
}

// Exists reports whether the object file is present.
func (s *LocalStore) Exists(ctx context.Context, key string, variant Variant) (bool, error) {
	path, err := s.path(key, variant)
	if err != nil {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %q: %w", path, err)
	}
	return true, nil
}
