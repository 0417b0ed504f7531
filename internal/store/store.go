// Package store keeps the local photo cache in step with the album manifest.
//
// Layout under the storage root:
//
//	original/{id}{ext}   downloaded originals
//	processed/{id}.bmp   palette bitmaps derived from originals
//
// The manifest is the source of truth. A processed bitmap exists only while
// its original exists, and is dropped whenever the original changes.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/natefinch/atomic"

	"github.com/provide-io/einkframe/internal/assets"
	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
)

// Converter turns an original into a bitmap at dstPath. It must not leave a
// partial file behind on failure.
type Converter interface {
	ConvertFile(srcPath, dstPath string) error
}

// Options configures a Store.
type Options struct {
	Root      string
	Source    assets.Source
	Converter Converter
	Logger    hclog.Logger
}

// Stats summarizes the most recent reconcile and conversion pass.
type Stats struct {
	Originals     int       `json:"originals"`
	Processed     int       `json:"processed"`
	Downloaded    int       `json:"downloaded"`
	Unchanged     int       `json:"unchanged"`
	Failed        int       `json:"failed"`
	Removed       int       `json:"removed"`
	Converted     int       `json:"converted"`
	ConvertFailed int       `json:"convert_failed"`
	LastReconcile time.Time `json:"last_reconcile"`
}

// Store owns the original/ and processed/ directories. Reconcile,
// ConvertPending and ListProcessed are meant to be called from a single
// goroutine; Stats may be called from anywhere.
type Store struct {
	root         string
	originalDir  string
	processedDir string
	source       assets.Source
	converter    Converter
	logger       hclog.Logger

	// known is the manifest as of the last reconcile, minus failed downloads.
	known assets.Manifest

	mu    sync.Mutex
	stats Stats
}

// New creates the storage layout and returns a Store over it.
func New(opts Options) (*Store, error) {
	if opts.Root == "" {
		opts.Root = DefaultRoot()
	}
	if opts.Source == nil {
		return nil, errors.New("store: source is required")
	}
	if opts.Converter == nil {
		return nil, errors.New("store: converter is required")
	}
	if err := createLayout(opts.Root, layout); err != nil {
		return nil, err
	}

	return &Store{
		root:         opts.Root,
		originalDir:  filepath.Join(opts.Root, originalDir),
		processedDir: filepath.Join(opts.Root, processedDir),
		source:       opts.Source,
		converter:    opts.Converter,
		logger:       logging.OrNull(opts.Logger).Named("store"),
		known:        assets.Manifest{},
	}, nil
}

func (s *Store) processedPath(id string) string {
	return filepath.Join(s.processedDir, id+bitmapExt)
}

// validName reports whether id and ext form a plain file name that stays
// inside original/.
func validName(id, ext string) bool {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return false
	}
	if ext == "" {
		return true
	}
	return ext[0] == '.' && !strings.ContainsAny(ext, `/\`) && !strings.Contains(ext, "..")
}

// Reconcile downloads manifest entries that are new or whose extension
// changed, then deletes every local file the manifest no longer names.
// Individual download failures are logged and the id is retried on the next
// call. Ids that are not plain file names are skipped and counted as failed.
// Only context cancellation or a storage root that cannot be recreated aborts
// the pass.
func (s *Store) Reconcile(ctx context.Context, manifest assets.Manifest) error {
	s.logger.Info("🔄 Reconciling local store", "assets", len(manifest))

	if err := createLayout(s.root, layout); err != nil {
		return fmt.Errorf("%w: %v", ferrors.ErrStorage, err)
	}

	var st Stats
	next := make(assets.Manifest, len(manifest))

	for _, id := range manifest.IDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ext := manifest[id]
		if !validName(id, ext) {
			s.logger.Warn("⚠️ Skipping asset with unsafe id", "id", id, "ext", ext)
			st.Failed++
			continue
		}
		dst := filepath.Join(s.originalDir, manifest.FileName(id))

		if prev, ok := s.known[id]; ok && prev == ext && fileExists(dst) {
			next[id] = ext
			continue
		}

		data, err := s.source.DownloadAsset(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("⚠️ Download failed, will retry next cycle", "id", id, "error", err)
			st.Failed++
			continue
		}

		if sameContent(dst, data) {
			s.logger.Debug("✅ Original unchanged", "id", id)
			st.Unchanged++
			next[id] = ext
			continue
		}

		if err := atomic.WriteFile(dst, bytes.NewReader(data)); err != nil {
			s.logger.Error("❌ Failed to write original", "id", id, "path", dst, "error", err)
			st.Failed++
			continue
		}
		// The bitmap, if any, was derived from the old content.
		s.removeFile(s.processedPath(id))
		s.logger.Info("📥 Downloaded asset", "id", id, "path", dst, "bytes", len(data))
		st.Downloaded++
		next[id] = ext
	}

	s.known = next
	st.Removed = s.purge(manifest)
	st.LastReconcile = time.Now()

	s.mu.Lock()
	prevConverted, prevConvertFailed := s.stats.Converted, s.stats.ConvertFailed
	s.stats = st
	s.stats.Converted, s.stats.ConvertFailed = prevConverted, prevConvertFailed
	s.stats.Originals, s.stats.Processed = s.countFiles()
	s.mu.Unlock()

	s.logger.Info("✅ Reconcile complete",
		"downloaded", st.Downloaded, "unchanged", st.Unchanged,
		"failed", st.Failed, "removed", st.Removed)
	return nil
}

// purge deletes originals that are not exactly {id}{ext} for a listed asset,
// then bitmaps that have no surviving original. Listed assets whose
// download failed keep any copy already on disk.
func (s *Store) purge(listed assets.Manifest) int {
	removed := 0
	survivors := make(map[string]bool)

	for _, name := range s.readDir(s.originalDir) {
		ext := filepath.Ext(name)
		id := strings.TrimSuffix(name, ext)
		if want, ok := listed[id]; ok && want == ext {
			survivors[id] = true
			continue
		}
		if s.removeFile(filepath.Join(s.originalDir, name)) {
			s.logger.Debug("🧹 Removed stale original", "file", name)
			removed++
		}
	}

	for _, name := range s.readDir(s.processedDir) {
		id, isBitmap := strings.CutSuffix(name, bitmapExt)
		if isBitmap && survivors[id] {
			continue
		}
		if s.removeFile(filepath.Join(s.processedDir, name)) {
			s.logger.Debug("🧹 Removed stale bitmap", "file", name)
			removed++
		}
	}
	return removed
}

// ConvertPending converts every original that has no bitmap yet. Failures
// are logged and retried on the next call.
func (s *Store) ConvertPending(ctx context.Context) error {
	converted, failed := 0, 0

	for _, name := range s.readDir(s.originalDir) {
		if err := ctx.Err(); err != nil {
			return err
		}
		ext := filepath.Ext(name)
		id := strings.TrimSuffix(name, ext)
		dst := s.processedPath(id)
		if fileExists(dst) {
			continue
		}

		src := filepath.Join(s.originalDir, name)
		start := time.Now()
		if err := s.converter.ConvertFile(src, dst); err != nil {
			s.logger.Error("❌ Conversion failed", "file", name, "error", err)
			failed++
			continue
		}
		s.logger.Info("🎨 Processed image", "file", name, "duration", time.Since(start).Round(time.Millisecond))
		converted++
	}

	s.mu.Lock()
	s.stats.Converted = converted
	s.stats.ConvertFailed = failed
	s.stats.Originals, s.stats.Processed = s.countFiles()
	s.mu.Unlock()
	return nil
}

// ListProcessed returns the full paths of all bitmaps, sorted by name. A
// listing failure wraps ErrStorage.
func (s *Store) ListProcessed() ([]string, error) {
	entries, err := os.ReadDir(s.processedDir)
	if err != nil {
		return nil, fmt.Errorf("%w: list processed: %v", ferrors.ErrStorage, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != bitmapExt {
			continue
		}
		paths = append(paths, filepath.Join(s.processedDir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Stats returns a copy of the latest counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// readDir lists regular file names in dir. Errors are logged and yield an
// empty listing.
func (s *Store) readDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Error("❌ Failed to list directory", "dir", dir, "error", err)
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

func (s *Store) countFiles() (originals, processed int) {
	return len(s.readDir(s.originalDir)), len(s.readDir(s.processedDir))
}

// removeFile deletes path and reports whether a file was removed.
func (s *Store) removeFile(path string) bool {
	err := os.Remove(path)
	switch {
	case err == nil:
		return true
	case os.IsNotExist(err):
		return false
	default:
		s.logger.Error("❌ Error removing file", "path", path, "error", err)
		return false
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
