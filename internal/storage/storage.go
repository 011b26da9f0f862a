// Package storage provides durable, variant-addressed blob storage for
// encoded media. Objects are written exactly once: Put enforces
// create-if-absent semantics, which is what makes signed upload
// authorizations single-use even under concurrent requests.
//
// Two implementations exist: a local filesystem store and a MinIO
// (S3-compatible) store. Swap by changing the concrete type injected
// at startup.
package storage

import (
	"context"
	"errors"
	"time"
)

// Variant names one of the derived artifacts stored per upload key.
type Variant string

const (
	// VariantFull is the aspect-preserving, bounded rendition.
	VariantFull Variant = "full"
	// VariantThumbnail is the fixed-size square rendition.
	VariantThumbnail Variant = "thumbnail"
)

// ErrNotFound is returned by Get when no object exists for (key, variant).
var ErrNotFound = errors.New("object not found")

// ErrAlreadyExists is returned by Put when (key, variant) is already
// written. Exactly one of any set of concurrent writers succeeds.
var ErrAlreadyExists = errors.New("object already exists")

// Object is a stored blob together with its serving metadata.
type Object struct {
	Data         []byte
	ContentType  string
	LastModified time.Time
}

// Store is the interface for variant-addressed blob persistence.
type Store interface {
	// Put durably writes data under (key, variant). It never overwrites:
	// a second write to the same address fails with ErrAlreadyExists.
	Put(ctx context.Context, key string, variant Variant, data []byte, contentType string) error
	// Get retrieves the object at (key, variant) or ErrNotFound.
	Get(ctx context.Context, key string, variant Variant) (*Object, error)
	// Delete removes the object at (key, variant). Used only as a
	// compensating action when a paired write fails partway.
	Delete(ctx context.Context, key string, variant Variant) error
	// Exists reports whether an object is already written at (key, variant).
	Exists(ctx context.Context, key string, variant Variant) (bool, error)
}

// ObjectName returns the canonical storage path for (key, variant).
// Stored media is always JPEG, so the extension is fixed.
func ObjectName(key string, variant Variant) string {
	return string(variant) + "/" + key + ".jpg"
}
