// Package upstream talks to the authority service that has the final say
// on whether an upload is accepted. The media service never decides this
// itself: it forwards the parsed authorization over an authenticated
// channel and treats anything but an explicit accept as fatal for the
// request.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// ErrUnauthorized is returned when the authority rejects our bearer
// credential. This means the service is misconfigured, not that the
// client's upload is bad.
var ErrUnauthorized = errors.New("upstream rejected bearer credential")

// ErrRejected is returned when the authority explicitly declines the upload.
var ErrRejected = errors.New("upstream rejected upload")

// Confirmation is the payload forwarded to the authority: the fields of
// the parsed authorization the authority needs to recognize and accept
// the upload.
type Confirmation struct {
	Key       string    `json:"key"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxWidth  int       `json:"max_width"`
	MaxHeight int       `json:"max_height"`
}

// Confirmer is the narrow capability the upload pipeline depends on.
// The concrete client is swapped for a fake in tests.
type Confirmer interface {
	// Confirm forwards the confirmation for final acceptance. A nil
	// return means the upload may be persisted.
	Confirm(ctx context.Context, confirmation Confirmation) error
}

// Client confirms uploads against the authority's confirmation endpoint
// using a bearer credential.
type Client struct {
	httpClient *http.Client
	baseURL    string
	bearer     string
}

// NewClient creates a confirmation client for the given authority base URL.
// timeout bounds each confirmation call; zero means the default.
func NewClient(baseURL, bearer string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("upstream: base URL required")
	}
	if strings.TrimSpace(bearer) == "" {
		return nil, errors.New("upstream: bearer credential required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		bearer:     bearer,
	}, nil
}

// Confirm POSTs the confirmation to /confirm with the bearer credential.
// 2xx is an accept; 401/403 is a credential failure; any other status is
// a rejection. Transport errors (including timeout) surface as-is.
func (c *Client) Confirm(ctx context.Context, confirmation Confirmation) error {
	body, err := json.Marshal(confirmation)
	if err != nil {
		return fmt.Errorf("upstream: marshal confirmation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/confirm", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: confirm call: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w (status %d)", ErrRejected, resp.StatusCode)
	}
}
