package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kittclouds/coordnet/internal/store"
	"github.com/stretchr/testify/require"
)

func TestResolveOneFollowsRedirects(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirector.Close()

	r := New(Options{})
	res := r.ResolveOne(context.Background(), redirector.URL)

	require.Equal(t, StatusOK, res.ResolvedStatus)
	require.Equal(t, final.URL, res.ResolvedURL)
	require.True(t, res.SSLVerified)
}

func TestResolveOneTooManyRedirects(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/next", http.StatusFound)
	}))
	defer server.Close()

	r := New(Options{MaxRedirects: 2})
	res := r.ResolveOne(context.Background(), server.URL)

	require.Equal(t, StatusTooManyRedirects, res.ResolvedStatus)
	require.Equal(t, server.URL, res.ResolvedURL, "unresolvable chains fall back to the original url")
}

func TestResolveOneConnectionError(t *testing.T) {
	r := New(Options{Timeout: 1e9}) // 1s, avoid hanging on a closed port
	res := r.ResolveOne(context.Background(), "http://127.0.0.1:1")

	require.Equal(t, StatusConnectionError, res.ResolvedStatus)
	require.Equal(t, "http://127.0.0.1:1", res.ResolvedURL)
}

func TestResolveAllPersistsAndRebuildsJoin(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	s, err := store.Open(filepath.Join(t.TempDir(), "coordnet.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, store.InsertMessage(ctx, s.DB(), store.Message{MessageID: "m1", UserID: "u1", Text: "hi", Timestamp: 0}))
	require.NoError(t, store.InsertMessageURL(ctx, s.DB(), store.MessageURL{MessageID: "m1", URL: final.URL, Timestamp: 0, UserID: "u1"}))

	r := New(Options{Concurrency: 4, RatePerSec: 1000, Burst: 1000})
	require.NoError(t, r.ResolveAll(ctx, s, nil))

	var resolvedURL string
	require.NoError(t, s.DB().QueryRow(`select resolved_url from resolved_url where url = ?`, final.URL).Scan(&resolvedURL))
	require.Equal(t, final.URL, resolvedURL)

	var count int
	require.NoError(t, s.DB().QueryRow(`select count(*) from resolved_message_url`).Scan(&count))
	require.Equal(t, 1, count)
}
