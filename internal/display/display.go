// Package display drives the e-paper panel that shows processed bitmaps.
//
// Three drivers share the Driver interface: the Waveshare 7.3" (E) panel
// over SPI, an emulator that renders PNG snapshots, and an in-memory mock.
// The variant is picked once at startup with New.
package display

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
)

const (
	// PanelWidth and PanelHeight are the native resolution of the 7.3" (E) panel.
	PanelWidth  = 800
	PanelHeight = 480

	// Emulated refresh times, matching the real panel closely enough to
	// exercise the display loop's timing.
	DefaultEmulatorClearDelay   = 12 * time.Second
	DefaultEmulatorDisplayDelay = 5 * time.Second
)

// Driver is a display backend. Clear and Display block until the panel has
// refreshed or ctx is done. Sleep powers the panel down and is always called
// once when the display loop stops.
type Driver interface {
	Init(ctx context.Context) error
	Clear(ctx context.Context) error
	Display(ctx context.Context, path string) error
	Sleep() error
	Width() int
	Height() int
}

// Kind selects a Driver implementation.
type Kind int

const (
	KindEPD7in3e Kind = iota
	KindEmulator
	KindMock
)

// String returns the config name of k.
func (k Kind) String() string {
	switch k {
	case KindEPD7in3e:
		return "epd7in3e"
	case KindEmulator:
		return "emulator"
	case KindMock:
		return "mock"
	default:
		return "unknown"
	}
}

// ParseKind parses a display_manager value.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "epd7in3e":
		return KindEPD7in3e, nil
	case "emulator":
		return KindEmulator, nil
	case "mock":
		return KindMock, nil
	default:
		return 0, fmt.Errorf("%w: unsupported display manager %q", ferrors.ErrConfig, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Options configures New. Fields that do not apply to the selected kind are
// ignored.
type Options struct {
	// Width and Height of the emulator and mock. Default: panel size.
	Width  int
	Height int

	// SnapshotDir receives the emulator's PNG snapshots.
	SnapshotDir string
	// ClearDelay and DisplayDelay simulate refresh time in the emulator.
	ClearDelay   time.Duration
	DisplayDelay time.Duration

	// SPIPort names the SPI port for the panel; empty selects the first one.
	SPIPort string
	// Pins wires the panel's control lines. Default: DefaultPins().
	Pins *Pins

	Logger hclog.Logger
}

// New builds the driver for kind.
func New(kind Kind, opts Options) (Driver, error) {
	if opts.Width <= 0 {
		opts.Width = PanelWidth
	}
	if opts.Height <= 0 {
		opts.Height = PanelHeight
	}

	switch kind {
	case KindEPD7in3e:
		pins := DefaultPins()
		if opts.Pins != nil {
			pins = *opts.Pins
		}
		return OpenEPD7in3e(opts.SPIPort, pins, opts.Logger)
	case KindEmulator:
		return NewEmulator(EmulatorOptions{
			Width:        opts.Width,
			Height:       opts.Height,
			Dir:          opts.SnapshotDir,
			ClearDelay:   opts.ClearDelay,
			DisplayDelay: opts.DisplayDelay,
			Logger:       opts.Logger,
		})
	case KindMock:
		return NewMock(opts.Width, opts.Height), nil
	default:
		return nil, fmt.Errorf("%w: unsupported display kind %d", ferrors.ErrConfig, int(kind))
	}
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
