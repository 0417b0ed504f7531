package frame

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/einkframe/internal/display"
	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
)

// DisplayConfig configures a DisplayLoop.
type DisplayConfig struct {
	// PhotoInterval is the time between photos. Default: 30s.
	PhotoInterval time.Duration
	// ClearInterval is the minimum time between full clears. Default: 1h.
	ClearInterval time.Duration
	// PollSlice bounds how long a wait goes without checking for shutdown.
	// Default: 1s.
	PollSlice time.Duration
}

func (c *DisplayConfig) defaults() {
	if c.PhotoInterval <= 0 {
		c.PhotoInterval = 30 * time.Second
	}
	if c.ClearInterval <= 0 {
		c.ClearInterval = time.Hour
	}
	if c.PollSlice <= 0 || c.PollSlice > time.Second {
		c.PollSlice = time.Second
	}
}

// DisplayStatus describes the display loop for the status endpoint.
type DisplayStatus struct {
	Current   string    `json:"current,omitempty"`
	Cursor    int       `json:"cursor"`
	Shown     int       `json:"shown"`
	Failures  int       `json:"failures"`
	LastShown time.Time `json:"last_shown"`
	LastClear time.Time `json:"last_clear"`
}

// DisplayLoop shows the next playlist entry every photo interval, clearing
// the panel first when the clear interval has passed.
type DisplayLoop struct {
	driver   display.Driver
	playlist *Playlist
	config   DisplayConfig
	logger   hclog.Logger

	// Owned by the Run goroutine.
	cursor    int
	lastClear time.Time

	mu     sync.Mutex
	status DisplayStatus
}

// NewDisplayLoop creates a DisplayLoop.
func NewDisplayLoop(driver display.Driver, playlist *Playlist, cfg DisplayConfig, logger hclog.Logger) *DisplayLoop {
	cfg.defaults()
	return &DisplayLoop{
		driver:   driver,
		playlist: playlist,
		config:   cfg,
		logger:   logging.OrNull(logger).Named("display"),
	}
}

// Status returns a copy of the loop status.
func (d *DisplayLoop) Status() DisplayStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Run initializes the driver and shows photos until ctx is cancelled. The
// driver is always put to sleep before Run returns.
func (d *DisplayLoop) Run(ctx context.Context) error {
	d.logger.Info("🖼️ Display loop started", "photo_interval", d.config.PhotoInterval, "clear_interval", d.config.ClearInterval)
	defer func() {
		if err := d.driver.Sleep(); err != nil {
			d.logger.Error("❌ Failed to put display to sleep", "error", err)
		}
		d.logger.Info("🛑 Display loop stopped")
	}()

	if err := d.driver.Init(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if !ferrors.Expected(err) {
			return fmt.Errorf("display init: %w", err)
		}
		d.logger.Error("❌ Display init failed", "error", err)
	}

	for {
		d.tick(ctx)
		if !d.wait(ctx, d.config.PhotoInterval) {
			return nil
		}
	}
}

// tick shows one photo. Driver failures are logged and never stop the loop.
func (d *DisplayLoop) tick(ctx context.Context) {
	path, next, ok := d.playlist.Next(d.cursor)
	if !ok {
		d.logger.Info("📭 No images to display")
		return
	}
	d.cursor = next

	if time.Since(d.lastClear) > d.config.ClearInterval {
		if err := d.driver.Clear(ctx); err != nil {
			d.fail(ctx, "clear", err)
		} else {
			d.lastClear = time.Now()
			d.mu.Lock()
			d.status.LastClear = d.lastClear
			d.mu.Unlock()
		}
	}
	if ctx.Err() != nil {
		return
	}

	if err := d.driver.Display(ctx, path); err != nil {
		d.fail(ctx, "display", err)
		return
	}

	d.mu.Lock()
	d.status.Current = path
	d.status.Cursor = d.cursor
	d.status.Shown++
	d.status.LastShown = time.Now()
	d.mu.Unlock()
}

func (d *DisplayLoop) fail(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		return
	}
	d.mu.Lock()
	d.status.Failures++
	d.mu.Unlock()
	d.logger.Error("❌ Display operation failed", "op", op, "error", err)
}

// wait sleeps for total in slices of at most PollSlice. It returns false
// once ctx is cancelled.
func (d *DisplayLoop) wait(ctx context.Context, total time.Duration) bool {
	deadline := time.Now().Add(total)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ctx.Err() == nil
		}
		timer := time.NewTimer(min(remaining, d.config.PollSlice))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
