package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioStore implements Store using a MinIO (or any S3-compatible) backend.
// Switching providers means changing STORAGE_ENDPOINT and credentials —
// no code changes are needed.
//
// Put sends an If-None-Match: * conditional write, so the server enforces
// create-if-absent: concurrent writers to the same (key, variant) get
// exactly one winner, with every loser observing ErrAlreadyExists.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore creates a MinIO client, ensures the bucket exists, and
// returns a ready-to-use MinioStore.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx := context.Background()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		log.Info().Str("bucket", bucket).Msg("storage: created bucket")
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

// Put uploads data under the canonical object name, refusing to overwrite
// an existing object. The overwrite check is done by the server via an
// If-None-Match: * precondition, so it holds across instances.
func (s *MinioStore) Put(ctx context.Context, key string, variant Variant, data []byte, contentType string) error {
	name := ObjectName(key, variant)

	opts := minio.PutObjectOptions{ContentType: contentType}
	opts.SetMatchETagExcept("*")

	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		if isPreconditionFailed(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("put object %q: %w", name, err)
	}
	return nil
}

// isPreconditionFailed reports whether err is the server refusing a
// conditional write because the object is already written.
func isPreconditionFailed(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusPreconditionFailed || resp.Code == "PreconditionFailed"
}

// Get downloads the object and its metadata.
func (s *MinioStore) Get(ctx context.Context, key string, variant Variant) (*Object, error) {
	name := ObjectName(key, variant)

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read object %q: %w", name, err)
	}

	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object %q: %w", name, err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return &Object{
		Data:         data,
		ContentType:  contentType,
		LastModified: info.LastModified,
	}, nil
}

// Delete removes the object from the bucket.
func (s *MinioStore) Delete(ctx context.Context, key string, variant Variant) error {
	return s.client.RemoveObject(ctx, s.bucket, ObjectName(key, variant), minio.RemoveObjectOptions{})
}

// Exists reports whether an object is already stored at (key, variant).
func (s *MinioStore) Exists(ctx context.Context, key string, variant Variant) (bool, error) {
	name := ObjectName(key, variant)
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat object %q: %w", name, err)
	}
	return true, nil
}
