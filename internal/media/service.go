package media

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wanderhosts/media/internal/storage"
	"github.com/wanderhosts/media/internal/token"
	"github.com/wanderhosts/media/internal/upstream"
)

// contentTypeJPEG is the content type of every stored variant.
const contentTypeJPEG = "image/jpeg"

// Service orchestrates an upload end to end: token decode, authorization
// validation, image transformation, upstream confirmation, and the
// all-or-nothing write of both variants.
type Service struct {
	store     storage.Store
	confirmer upstream.Confirmer
	secret    []byte
	baseURL   string
	thumbSize int
	now       func() time.Time
}

// NewService creates a media Service. secret is the shared signing key,
// baseURL the public base under which variants are served, and thumbSize
// the side length of the square thumbnail.
func NewService(store storage.Store, confirmer upstream.Confirmer, secret []byte, baseURL string, thumbSize int) *Service {
	return &Service{
		store:     store,
		confirmer: confirmer,
		secret:    secret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		thumbSize: thumbSize,
		now:       time.Now,
	}
}

// UploadResult is the success payload of an upload.
type UploadResult struct {
	OK           bool   `json:"ok"`
	Key          string `json:"key"`
	Filename     string `json:"filename"`
	FullURL      string `json:"full_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// ProcessUpload runs the full upload pipeline for the signed (data, sig)
// token pair and the uploaded file bytes. On any failure nothing is
// persisted: confirmation happens before the first write, and a failed
// thumbnail write rolls back the full variant.
func (s *Service) ProcessUpload(ctx context.Context, data, sig string, file []byte) (*UploadResult, error) {
	payload, tag, err := token.Decode(data, sig)
	if err != nil {
		return nil, err
	}

	if !token.Verify(payload, tag, s.secret) {
		return nil, ErrBadSignature
	}

	auth, err := ParseAuthorization(payload)
	if err != nil {
		return nil, err
	}

	if auth.expiredAt(s.now()) {
		return nil, ErrExpired
	}

	used, err := s.store.Exists(ctx, auth.Key, storage.VariantFull)
	if err != nil {
		return nil, fmt.Errorf("check key %s: %w", auth.Key, err)
	}
	if used {
		return nil, ErrAlreadyUsed
	}

	img, err := decodeImage(file)
	if err != nil {
		return nil, err
	}

	full, err := renderFull(img, auth.MaxWidth, auth.MaxHeight)
	if err != nil {
		return nil, err
	}
	thumb, err := renderThumbnail(img, s.thumbSize)
	if err != nil {
		return nil, err
	}

	// The authority has the final say. Confirming before the first write
	// means a rejection trivially leaves no artifact behind.
	if err := s.confirmer.Confirm(ctx, auth.confirmation()); err != nil {
		return nil, fmt.Errorf("confirm key %s: %w", auth.Key, err)
	}

	// First writer wins: a concurrent duplicate of the same token loses
	// here with ErrAlreadyExists, preserving single-use semantics.
	if err := s.store.Put(ctx, auth.Key, storage.VariantFull, full, contentTypeJPEG); err != nil {
		return nil, fmt.Errorf("persist full %s: %w", auth.Key, err)
	}
	if err := s.store.Put(ctx, auth.Key, storage.VariantThumbnail, thumb, contentTypeJPEG); err != nil {
		// Full and thumbnail are a single unit. Roll the full variant
		// back so no half-written upload is ever servable.
		if delErr := s.store.Delete(ctx, auth.Key, storage.VariantFull); delErr != nil {
			log.Error().Err(delErr).Str("key", auth.Key).Msg("rollback of full variant failed")
		}
		return nil, fmt.Errorf("persist thumbnail %s: %w", auth.Key, err)
	}

	return &UploadResult{
		OK:           true,
		Key:          auth.Key,
		Filename:     auth.Key + ".jpg",
		FullURL:      s.variantURL(storage.VariantFull, auth.Key),
		ThumbnailURL: s.variantURL(storage.VariantThumbnail, auth.Key),
	}, nil
}

// GetVariant fetches a stored variant together with its ETag. The ETag is
// a quoted hex SHA-256 of the stored bytes: stable across reads, distinct
// whenever the bytes differ.
func (s *Service) GetVariant(ctx context.Context, key string, variant storage.Variant) (*storage.Object, string, error) {
	obj, err := s.store.Get(ctx, key, variant)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("get %s/%s: %w", variant, key, err)
	}
	return obj, etagFor(obj.Data), nil
}

func (s *Service) variantURL(variant storage.Variant, key string) string {
	return fmt.Sprintf("%s/img/%s/%s.jpg", s.baseURL, variant, key)
}

func etagFor(data []byte) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x", sha256.Sum256(data)))
}
