package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// LocalSource serves an album from a plain directory: every image file is an
// asset whose id is the file name without extension. It stands in for a
// remote server on offline frames and in development.
type LocalSource struct {
	dir    string
	logger hclog.Logger

	mu    sync.Mutex
	paths map[string]string
}

// NewLocalSource creates a LocalSource for dir.
func NewLocalSource(dir string, logger hclog.Logger) *LocalSource {
	return &LocalSource{
		dir:    dir,
		logger: logging.OrNull(logger).Named("local-source"),
		paths:  make(map[string]string),
	}
}

// ListAlbumAssets lists the directory. The album name is not used; the
// directory is the album.
func (s *LocalSource) ListAlbumAssets(ctx context.Context, album string) ([]Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ferrors.ErrManifestFetch, s.dir, err)
	}

	paths := make(map[string]string, len(entries))
	list := make([]Asset, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := filepath.Ext(name)
		if !imageExtensions[strings.ToLower(ext)] {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		if _, dup := paths[id]; dup {
			s.logger.Warn("⚠️ Skipping duplicate asset id", "id", id, "file", name)
			continue
		}
		full := filepath.Join(s.dir, name)
		paths[id] = full
		list = append(list, Asset{ID: id, OriginalPath: full})
	}

	s.mu.Lock()
	s.paths = paths
	s.mu.Unlock()

	s.logger.Debug("📂 Listed local album", "dir", s.dir, "assets", len(list))
	return list, nil
}

// DownloadAsset reads the file listed for id by the last listing.
func (s *LocalSource) DownloadAsset(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	path, ok := s.paths[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s: not listed", ferrors.ErrAssetDownload, id)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ferrors.ErrAssetDownload, id, err)
	}
	return data, nil
}

// Watch calls onChange whenever files in the directory are created, removed,
// renamed or rewritten. Bursts of events within debounce are coalesced into
// one call. Watch blocks until ctx is done.
func (s *LocalSource) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.logger.Info("👀 Watching local album", "dir", s.dir)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}
			s.logger.Trace("Local album changed", "event", event.Op.String(), "path", event.Name)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			onChange()

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("⚠️ Watcher error", "error", werr)
		}
	}
}
