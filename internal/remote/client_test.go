package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/piiscan/internal/errs"
)

func TestClientLanguages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/languages", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Go": 1200, "Shell": 300}`))
	})
	c := newTestClient(t, mux)

	got, err := c.Languages(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"Go": 1200, "Shell": 300}, got)

	_, err = c.Languages(context.Background(), "o", "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestClientLatestRelease(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/redactyl/piiscan/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"v1.4.0","name":"piiscan 1.4.0"}`))
	})
	c := newTestClient(t, mux)

	tag, err := c.LatestRelease(context.Background(), "redactyl", "piiscan")
	require.NoError(t, err)
	assert.Equal(t, "v1.4.0", tag)
}

func TestNewClient_TokenAuth(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), Options{BaseURL: srv.URL + "/api/v3", Token: "t0ken"})
	require.NoError(t, err)
	_, err = c.Languages(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, "Bearer t0ken", auth)
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), Options{BaseURL: "://nope"})
	require.Error(t, err)
}
