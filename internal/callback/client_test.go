package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeliver_PostsInChannelMessage(t *testing.T) {
	var got message
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := New(nil).Deliver(context.Background(), srv.URL, "*Cloud spend, last 3 days: $45.60*\n\nnarrative")
	require.NoError(t, err)
	require.Equal(t, "application/json", contentType)
	require.Equal(t, "in_channel", got.ResponseType)
	require.Contains(t, got.Text, "$45.60")
}

func TestDeliver_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "expired url", http.StatusGone)
	}))
	defer srv.Close()

	err := New(nil).Deliver(context.Background(), srv.URL, "text")
	require.Error(t, err)
	require.ErrorContains(t, err, "410")
}

func TestDeliver_EmptyURL(t *testing.T) {
	err := New(nil).Deliver(context.Background(), "", "text")
	require.Error(t, err)
}

func TestDeliver_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	err := New(nil).Deliver(context.Background(), srv.URL, "text")
	require.Error(t, err)
}
