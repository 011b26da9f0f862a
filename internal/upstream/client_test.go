package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfirmation() Confirmation {
	now := time.Now().UTC().Truncate(time.Second)
	return Confirmation{
		Key:       "abc",
		Type:      "IMAGE",
		CreatedAt: now,
		ExpiresAt: now.Add(20 * time.Minute),
		MaxWidth:  2000,
		MaxHeight: 1600,
	}
}

func TestConfirmAccept(t *testing.T) {
	want := testConfirmation()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/confirm", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		var got Confirmation
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, want.Key, got.Key)
		assert.Equal(t, want.MaxWidth, got.MaxWidth)
		assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "sekrit", 0)
	require.NoError(t, err)

	assert.NoError(t, c.Confirm(context.Background(), want))
}

func TestConfirmBadBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer correct" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "wrong", 0)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Confirm(context.Background(), testConfirmation()), ErrUnauthorized)
}

func TestConfirmRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no thanks", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "sekrit", 0)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Confirm(context.Background(), testConfirmation()), ErrRejected)
}

func TestConfirmTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c, err := NewClient(srv.URL, "sekrit", 50*time.Millisecond)
	require.NoError(t, err)

	err = c.Confirm(context.Background(), testConfirmation())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "bearer", 0)
	assert.Error(t, err)

	_, err = NewClient("http://localhost:1", "  ", 0)
	assert.Error(t, err)
}
