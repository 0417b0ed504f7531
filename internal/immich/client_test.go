package immich

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provide-io/einkframe/internal/assets"
	ferrors "github.com/provide-io/einkframe/pkg/errors"
)

const testKey = "secret"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/albums", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != testKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode([]Album{
			{ID: "a1", AlbumName: "Other"},
			{ID: "a2", AlbumName: "Frame"},
		})
	})
	mux.HandleFunc("GET /api/albums/a2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Album{
			ID:        "a2",
			AlbumName: "Frame",
			Assets: []AssetInfo{
				{ID: "x", OriginalPath: "/upload/x.JPG"},
				{ID: "y", OriginalPath: "/upload/y.png"},
			},
		})
	})
	mux.HandleFunc("GET /api/assets/x/original", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/octet-stream", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// deadURL returns the address of a server that is no longer listening.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	return addr
}

func TestListAlbumAssets(t *testing.T) {
	srv := newServer(t)
	c, err := New(Config{ServerURL: srv.URL, APIKey: testKey}, nil)
	require.NoError(t, err)

	got, err := c.ListAlbumAssets(context.Background(), "Frame")
	require.NoError(t, err)
	assert.Equal(t, []assets.Asset{
		{ID: "x", OriginalPath: "/upload/x.JPG"},
		{ID: "y", OriginalPath: "/upload/y.png"},
	}, got)
}

func TestListAlbumAssetsAlbumMissing(t *testing.T) {
	srv := newServer(t)
	c, err := New(Config{ServerURL: srv.URL, APIKey: testKey}, nil)
	require.NoError(t, err)

	_, err = c.ListAlbumAssets(context.Background(), "Nope")
	assert.ErrorIs(t, err, ferrors.ErrManifestFetch)
}

func TestUnauthorized(t *testing.T) {
	srv := newServer(t)
	c, err := New(Config{ServerURL: srv.URL, APIKey: "wrong"}, nil)
	require.NoError(t, err)

	_, err = c.Albums(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)

	_, err = c.ListAlbumAssets(context.Background(), "Frame")
	assert.ErrorIs(t, err, ferrors.ErrManifestFetch)
}

func TestDownloadAsset(t *testing.T) {
	srv := newServer(t)
	c, err := New(Config{ServerURL: srv.URL, APIKey: testKey}, nil)
	require.NoError(t, err)

	data, err := c.DownloadAsset(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	_, err = c.DownloadAsset(context.Background(), "missing")
	assert.ErrorIs(t, err, ferrors.ErrAssetDownload)
}

func TestDownloadAssetTooLarge(t *testing.T) {
	srv := newServer(t)
	c, err := New(Config{ServerURL: srv.URL, APIKey: testKey, MaxBytes: 4}, nil)
	require.NoError(t, err)

	_, err = c.DownloadAsset(context.Background(), "x")
	assert.ErrorIs(t, err, ferrors.ErrAssetDownload)
}

func TestBackupOnConnectionError(t *testing.T) {
	srv := newServer(t)
	c, err := New(Config{ServerURL: deadURL(t), BackupURL: srv.URL, APIKey: testKey}, nil)
	require.NoError(t, err)

	data, err := c.DownloadAsset(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestNoBackupOnHTTPError(t *testing.T) {
	var backupHits atomic.Int32
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupHits.Add(1)
	}))
	defer backup.Close()
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	c, err := New(Config{ServerURL: primary.URL, BackupURL: backup.URL, APIKey: testKey}, nil)
	require.NoError(t, err)

	_, err = c.DownloadAsset(context.Background(), "x")
	assert.ErrorIs(t, err, ferrors.ErrAssetDownload)
	assert.Zero(t, backupHits.Load())
}

func TestBothUnreachable(t *testing.T) {
	c, err := New(Config{ServerURL: deadURL(t), BackupURL: deadURL(t)}, nil)
	require.NoError(t, err)

	_, err = c.ListAlbumAssets(context.Background(), "Frame")
	assert.ErrorIs(t, err, ferrors.ErrManifestFetch)
}

func TestNewRejectsBadAddress(t *testing.T) {
	for _, addr := range []string{"", "ftp://host", "http://"} {
		_, err := New(Config{ServerURL: addr}, nil)
		assert.ErrorIs(t, err, ferrors.ErrConfig, addr)
	}
	_, err := New(Config{ServerURL: "http://ok", BackupURL: "nope"}, nil)
	assert.ErrorIs(t, err, ferrors.ErrConfig)
}

func TestAPIBase(t *testing.T) {
	got, err := apiBase(" http://photos.local:2283/ ")
	require.NoError(t, err)
	assert.Equal(t, "http://photos.local:2283/api", got)
}
