// Package frame runs the photo frame: a sync loop that keeps the local store
// in step with the album and a display loop that cycles the converted
// bitmaps, sharing one playlist.
package frame

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/provide-io/einkframe/internal/assets"
	"github.com/provide-io/einkframe/internal/display"
	"github.com/provide-io/einkframe/internal/store"
	"github.com/provide-io/einkframe/pkg/logging"
)

// WatchFunc blocks until ctx is done, calling onChange whenever the source
// may have changed.
type WatchFunc func(ctx context.Context, onChange func()) error

// Options configures a Daemon.
type Options struct {
	// LockDir holds the single-instance lock file. Empty disables locking.
	LockDir string

	Search assets.SearchHandler
	Source assets.Source
	Store  Store
	Driver display.Driver

	FetchInterval time.Duration
	Display       DisplayConfig

	// StatusAddr is the listen address of the status server. Empty
	// disables it.
	StatusAddr string
	// Watch, if set, triggers an early sync on source changes.
	Watch WatchFunc

	Version string
	Logger  hclog.Logger
}

// Daemon owns the playlist and supervises both loops.
type Daemon struct {
	opts     Options
	playlist *Playlist
	sync     *SyncLoop
	display  *DisplayLoop
	started  time.Time
	logger   hclog.Logger
}

// New wires the loops. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	switch {
	case opts.Search == nil:
		return nil, errors.New("frame: search handler is required")
	case opts.Source == nil:
		return nil, errors.New("frame: source is required")
	case opts.Store == nil:
		return nil, errors.New("frame: store is required")
	case opts.Driver == nil:
		return nil, errors.New("frame: display driver is required")
	}

	logger := logging.OrNull(opts.Logger)
	playlist := NewPlaylist()
	return &Daemon{
		opts:     opts,
		playlist: playlist,
		sync:     NewSyncLoop(opts.Search, opts.Source, opts.Store, playlist, opts.FetchInterval, logger),
		display:  NewDisplayLoop(opts.Driver, playlist, opts.Display, logger),
		started:  time.Now(),
		logger:   logger,
	}, nil
}

// Run runs both loops until ctx is cancelled or one of them fails with an
// unexpected error, which cancels the other and is returned.
func (d *Daemon) Run(ctx context.Context) error {
	if d.opts.LockDir != "" {
		lock, err := store.AcquireLock(d.opts.LockDir, d.logger)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	d.started = time.Now()
	d.logger.Info("🚀 Photo frame daemon starting", "version", d.opts.Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.sync.Run(gctx) })
	g.Go(func() error { return d.display.Run(gctx) })

	if d.opts.Watch != nil {
		g.Go(func() error {
			if err := d.opts.Watch(gctx, d.sync.Trigger); err != nil && gctx.Err() == nil {
				d.logger.Warn("⚠️ Source watcher stopped, relying on the fetch interval", "error", err)
			}
			return nil
		})
	}

	if d.opts.StatusAddr != "" {
		ln, err := net.Listen("tcp", d.opts.StatusAddr)
		if err != nil {
			// The loops are already running; stop them before returning.
			g.Go(func() error { return fmt.Errorf("status server: %w", err) })
			return g.Wait()
		}
		d.serveStatus(gctx, g, ln)
	}

	err := g.Wait()
	if err != nil {
		d.logger.Error("❌ Photo frame daemon stopped", "error", err)
		return err
	}
	d.logger.Info("👋 Photo frame daemon stopped")
	return nil
}

func (d *Daemon) serveStatus(ctx context.Context, g *errgroup.Group, ln net.Listener) {
	srv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	d.logger.Info("📡 Status server listening", "addr", ln.Addr().String())

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
