// Package media implements the upload pipeline and the serving endpoints:
// signed-authorization validation, image transformation, upstream
// confirmation, and variant persistence.
package media

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/wanderhosts/media/internal/storage"
	"github.com/wanderhosts/media/internal/token"
	"github.com/wanderhosts/media/internal/upstream"
)

// TypeImage is the only upload type currently issued by the authority.
const TypeImage = "IMAGE"

// Validation failures. All of these are client-caused and map to one
// uniform 400 response so callers cannot probe which check failed.
var (
	ErrBadSignature           = errors.New("bad signature")
	ErrMalformedAuthorization = errors.New("malformed authorization")
	ErrExpired                = errors.New("authorization expired")
	ErrAlreadyUsed            = errors.New("authorization already used")
)

// Content failures, also client-caused.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidImage      = errors.New("invalid image")
)

// Authorization is a time-boxed, single-use permission to upload one
// image, minted and signed by the upstream authority. The serialized JSON
// bytes are what gets signed; this struct is the parsed view.
type Authorization struct {
	Key       string    `json:"key"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxWidth  int       `json:"max_width"`
	MaxHeight int       `json:"max_height"`
}

// ParseAuthorization decodes and structurally validates a signed payload.
// Signature validity is checked by the caller before parsing; this only
// guards well-formedness.
func ParseAuthorization(payload []byte) (*Authorization, error) {
	var a Authorization
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, ErrMalformedAuthorization
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *Authorization) validate() error {
	switch {
	case a.Key == "":
		return ErrMalformedAuthorization
	case a.Type != TypeImage:
		return ErrMalformedAuthorization
	case a.CreatedAt.IsZero() || a.ExpiresAt.IsZero():
		return ErrMalformedAuthorization
	case !a.ExpiresAt.After(a.CreatedAt):
		return ErrMalformedAuthorization
	case a.MaxWidth <= 0 || a.MaxHeight <= 0:
		return ErrMalformedAuthorization
	}
	return nil
}

// expiredAt reports whether the authorization is no longer valid at now.
func (a *Authorization) expiredAt(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// confirmation builds the payload forwarded to the upstream authority.
func (a *Authorization) confirmation() upstream.Confirmation {
	return upstream.Confirmation{
		Key:       a.Key,
		Type:      a.Type,
		CreatedAt: a.CreatedAt,
		ExpiresAt: a.ExpiresAt,
		MaxWidth:  a.MaxWidth,
		MaxHeight: a.MaxHeight,
	}
}

// IsClientError reports whether err is caused by the uploader (bad token,
// bad image, reuse) rather than by this service or the upstream. A losing
// racer on the storage write counts as reuse.
func IsClientError(err error) bool {
	return errors.Is(err, token.ErrMalformedToken) ||
		errors.Is(err, ErrBadSignature) ||
		errors.Is(err, ErrMalformedAuthorization) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrInvalidImage) ||
		errors.Is(err, storage.ErrAlreadyExists)
}
