package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
)

type listOnly struct {
	list []Asset
	err  error
}

func (l listOnly) ListAlbumAssets(ctx context.Context, album string) ([]Asset, error) {
	return l.list, l.err
}

func (l listOnly) DownloadAsset(ctx context.Context, id string) ([]byte, error) {
	return nil, ferrors.ErrAssetDownload
}

func TestFromAssets(t *testing.T) {
	got := FromAssets([]Asset{
		{ID: "a", OriginalPath: "/upload/library/2024/IMG_0001.JPG"},
		{ID: "b", OriginalPath: "upload/b.heic.png"},
		{ID: "c", OriginalPath: "noext"},
		{ID: "", OriginalPath: "skipped.jpg"},
	})
	want := Manifest{"a": ".JPG", "b": ".png", "c": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromAssets mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "a.JPG", got.FileName("a"))
	assert.Equal(t, []string{"a", "b", "c"}, got.IDs())
}

func TestAlbumSearch(t *testing.T) {
	src := listOnly{list: []Asset{{ID: "x", OriginalPath: "x.jpg"}}}
	m, err := AlbumSearch{Album: "Frame"}.Search(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, Manifest{"x": ".jpg"}, m)

	_, err = AlbumSearch{Album: "Frame"}.Search(context.Background(), listOnly{err: ferrors.ErrManifestFetch})
	assert.True(t, errors.Is(err, ferrors.ErrManifestFetch))
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"one.jpg":     "1",
		"two.PNG":     "2",
		"notes.txt":   "skip",
		".hidden.jpg": "skip",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o700))

	src := NewLocalSource(dir, nil)
	list, err := src.ListAlbumAssets(context.Background(), "ignored")
	require.NoError(t, err)

	m := FromAssets(list)
	assert.Equal(t, Manifest{"one": ".jpg", "two": ".PNG"}, m)

	data, err := src.DownloadAsset(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))

	_, err = src.DownloadAsset(context.Background(), "notes")
	assert.True(t, errors.Is(err, ferrors.ErrAssetDownload))
}

func TestLocalSourceMissingDir(t *testing.T) {
	src := NewLocalSource(filepath.Join(t.TempDir(), "missing"), nil)
	_, err := src.ListAlbumAssets(context.Background(), "")
	assert.True(t, errors.Is(err, ferrors.ErrManifestFetch))
}

func TestLocalSourceWatch(t *testing.T) {
	dir := t.TempDir()
	src := NewLocalSource(dir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- src.Watch(ctx, 50*time.Millisecond, func() { calls.Add(1) })
	}()

	// Give the watcher time to register before generating events.
	time.Sleep(100 * time.Millisecond)
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
