package nvr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cam-sentinel-ai/internal/config"
	apperrors "cam-sentinel-ai/pkg/errors"
)

func newTestServer(handler http.HandlerFunc) (*httptest.Server, *Client) {
	server := httptest.NewServer(handler)
	client := NewClient(&config.NVRConfig{
		BaseURL:      server.URL,
		APIKey:       "secret",
		FetchTimeout: time.Second,
	})
	return server, client
}

func TestSnapshot(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	server, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	defer server.Close()

	at := time.Unix(1756000000, 0)
	data, err := client.Snapshot(context.Background(), "front_door", at)

	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Equal(t, "/api/cameras/front_door/snapshot.jpg", gotPath)
	assert.Equal(t, "at=1756000000", gotQuery)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestSnapshotLatestWithoutTimestamp(t *testing.T) {
	var gotQuery string
	server, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	defer server.Close()

	_, err := client.Snapshot(context.Background(), "front_door", time.Time{})

	require.NoError(t, err)
	assert.Empty(t, gotQuery)
}

func TestClip(t *testing.T) {
	var gotPath string
	server, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("mp4-bytes"))
	})
	defer server.Close()

	data, err := client.Clip(context.Background(), "nvr-123")

	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), data)
	assert.Equal(t, "/api/events/nvr-123/clip.mp4", gotPath)
}

func TestNotFoundMapsToUnsupported(t *testing.T) {
	server, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer server.Close()

	_, err := client.Clip(context.Background(), "gone")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMediaUnsupported))
}

func TestServerErrorMapsToFetchFailed(t *testing.T) {
	server, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := client.Snapshot(context.Background(), "front_door", time.Now())

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMediaFetchFailed))
}

func TestEmptyBodyIsError(t *testing.T) {
	server, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	_, err := client.Snapshot(context.Background(), "front_door", time.Now())

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMediaFetchFailed))
}
