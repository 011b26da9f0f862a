// Package token implements the signed upload envelope: a serialized
// authorization plus a keyed BLAKE2b tag, carried as two URL-safe
// base64 query parameters.
package token

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/url"

	"golang.org/x/crypto/blake2b"
)

// TagSize is the length in bytes of a signature tag.
const TagSize = 32

// ErrMalformedToken is returned when data or sig is not valid URL-safe base64.
var ErrMalformedToken = errors.New("malformed token")

// Sign computes a keyed BLAKE2b-256 tag over payload. The secret acts as
// the hash key, so the tag doubles as a symmetric signature: only a party
// holding the secret can produce a matching tag.
func Sign(payload, secret []byte) []byte {
	h, err := blake2b.New256(secret)
	if err != nil {
		// blake2b only rejects keys longer than 64 bytes; the secret is
		// validated at config load.
		panic(err)
	}
	h.Write(payload)
	return h.Sum(nil)
}

// Verify recomputes the tag over payload and compares it to the provided
// tag in constant time. A mismatch is an expected outcome, not an error.
func Verify(payload, tag, secret []byte) bool {
	want := Sign(payload, secret)
	return subtle.ConstantTimeCompare(want, tag) == 1
}

// Encode serializes payload and tag into the data/sig query parameters
// used by the upload URL.
func Encode(payload, tag []byte) url.Values {
	v := url.Values{}
	v.Set("data", base64.URLEncoding.EncodeToString(payload))
	v.Set("sig", base64.URLEncoding.EncodeToString(tag))
	return v
}

// Decode parses the data/sig query parameters back into payload and tag
// bytes. It does not verify the tag.
func Decode(data, sig string) (payload, tag []byte, err error) {
	payload, err = decodeB64URL(data)
	if err != nil {
		return nil, nil, ErrMalformedToken
	}
	tag, err = decodeB64URL(sig)
	if err != nil {
		return nil, nil, ErrMalformedToken
	}
	return payload, tag, nil
}

// decodeB64URL accepts URL-safe base64 with or without padding, since
// clients in the wild produce both.
func decodeB64URL(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
