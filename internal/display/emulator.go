package display

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/natefinch/atomic"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
)

// SnapshotName is the file the emulator keeps current.
const SnapshotName = "current.png"

// EmulatorOptions configures an Emulator.
type EmulatorOptions struct {
	Width        int
	Height       int
	Dir          string
	ClearDelay   time.Duration
	DisplayDelay time.Duration
	Logger       hclog.Logger
}

// Emulator stands in for the panel on machines without one. Every refresh
// rewrites Dir/current.png after the simulated refresh time.
type Emulator struct {
	opts   EmulatorOptions
	logger hclog.Logger

	mu     sync.Mutex
	frames int
}

// NewEmulator validates opts and returns an Emulator.
func NewEmulator(opts EmulatorOptions) (*Emulator, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: emulator snapshot directory is required", ferrors.ErrConfig)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: emulator size %dx%d", ferrors.ErrConfig, opts.Width, opts.Height)
	}
	return &Emulator{
		opts:   opts,
		logger: logging.OrNull(opts.Logger).Named("emulator"),
	}, nil
}

// Width returns the emulated panel width in pixels.
func (e *Emulator) Width() int { return e.opts.Width }

// Height returns the emulated panel height in pixels.
func (e *Emulator) Height() int { return e.opts.Height }

// SnapshotPath returns the path of the current snapshot.
func (e *Emulator) SnapshotPath() string {
	return filepath.Join(e.opts.Dir, SnapshotName)
}

// Frames returns the number of refreshes rendered so far.
func (e *Emulator) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Init creates the snapshot directory.
func (e *Emulator) Init(ctx context.Context) error {
	e.logger.Info("🔌 Initializing virtual panel", "dir", e.opts.Dir,
		"width", e.opts.Width, "height", e.opts.Height)
	if err := os.MkdirAll(e.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: create snapshot dir: %v", ferrors.ErrDisplayIO, err)
	}
	return nil
}

// Clear renders an all-white snapshot after the simulated clear time.
func (e *Emulator) Clear(ctx context.Context) error {
	e.logger.Info("🧽 Clearing virtual panel", "simulated", e.opts.ClearDelay)
	white := image.NewRGBA(image.Rect(0, 0, e.opts.Width, e.opts.Height))
	draw.Draw(white, white.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return e.render(ctx, white, e.opts.ClearDelay)
}

// Display renders the bitmap at path after the simulated refresh time.
func (e *Emulator) Display(ctx context.Context, path string) error {
	img, err := loadBitmap(path)
	if err != nil {
		return err
	}
	e.logger.Info("🖼️ Displaying image", "path", path, "simulated", e.opts.DisplayDelay)
	return e.render(ctx, img, e.opts.DisplayDelay)
}

// Sleep only logs; the snapshot keeps the last frame like a powered-down panel.
func (e *Emulator) Sleep() error {
	e.logger.Info("😴 Virtual panel sleeping", "frames", e.Frames())
	return nil
}

func (e *Emulator) render(ctx context.Context, img image.Image, delay time.Duration) error {
	if err := wait(ctx, delay); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", ferrors.ErrDisplayIO, err)
	}
	if err := atomic.WriteFile(e.SnapshotPath(), &buf); err != nil {
		return fmt.Errorf("%w: write snapshot: %v", ferrors.ErrDisplayIO, err)
	}

	e.mu.Lock()
	e.frames++
	e.mu.Unlock()
	return nil
}
