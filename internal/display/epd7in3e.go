package display

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-hclog"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
)

// Panel commands.
const (
	cmdPanelSetting    = 0x00
	cmdPowerSetting    = 0x01
	cmdPowerOff        = 0x02
	cmdPowerOffSeq     = 0x03
	cmdPowerOn         = 0x04
	cmdBoosterSoftA    = 0x05
	cmdBoosterSoftB    = 0x06
	cmdDeepSleep       = 0x07
	cmdBoosterSoftC    = 0x08
	cmdDataStart       = 0x10
	cmdDisplayRefresh  = 0x12
	cmdPLLControl      = 0x30
	cmdVCOMInterval    = 0x50
	cmdTCONSetting     = 0x60
	cmdResolution      = 0x61
	cmdTemperatureSel  = 0x84
	cmdPowerSaving     = 0xE3
	cmdCommandHeader   = 0xAA
	deepSleepCheckCode = 0xA5

	// clearWhite is two white pixels.
	clearWhite = 0x11

	spiFrequency = 4 * physic.MegaHertz
	// defaultMaxTx matches the usual spidev buffer size.
	defaultMaxTx = 4096
)

// initSequence is sent after reset, before power on.
var initSequence = []struct {
	cmd  byte
	data []byte
}{
	{cmdCommandHeader, []byte{0x49, 0x55, 0x20, 0x08, 0x09, 0x18}},
	{cmdPowerSetting, []byte{0x3F}},
	{cmdPanelSetting, []byte{0x5F, 0x69}},
	{cmdPowerOffSeq, []byte{0x00, 0x54, 0x00, 0x44}},
	{cmdBoosterSoftA, []byte{0x40, 0x1F, 0x1F, 0x2C}},
	{cmdBoosterSoftB, []byte{0x6F, 0x1F, 0x17, 0x49}},
	{cmdBoosterSoftC, []byte{0x6F, 0x1F, 0x1F, 0x22}},
	{cmdPLLControl, []byte{0x03}},
	{cmdVCOMInterval, []byte{0x3F}},
	{cmdTCONSetting, []byte{0x02, 0x00}},
	{cmdResolution, []byte{0x03, 0x20, 0x01, 0xE0}},
	{cmdTemperatureSel, []byte{0x01}},
	{cmdPowerSaving, []byte{0x2F}},
}

// Pins names the GPIO lines wired to the panel HAT, as understood by
// gpioreg.ByName. An empty CS leaves chip select to the SPI controller.
type Pins struct {
	Reset string `yaml:"reset"`
	DC    string `yaml:"dc"`
	CS    string `yaml:"cs"`
	Busy  string `yaml:"busy"`
	Power string `yaml:"power"`
}

// DefaultPins returns the Waveshare e-Paper HAT wiring on a Raspberry Pi.
func DefaultPins() Pins {
	return Pins{
		Reset: "GPIO17",
		DC:    "GPIO25",
		Busy:  "GPIO24",
		Power: "GPIO18",
	}
}

// EPD7in3e drives the Waveshare 7.3" (E) six-color panel.
type EPD7in3e struct {
	conn   spi.Conn
	closer io.Closer

	rst  gpio.PinOut
	dc   gpio.PinOut
	cs   gpio.PinOut // nil when the controller drives CS
	pwr  gpio.PinOut // optional
	busy gpio.PinIn

	maxTx       int
	busyPoll    time.Duration
	busyTimeout time.Duration
	resetDelay  time.Duration
	sleepSettle time.Duration

	logger hclog.Logger
}

// OpenEPD7in3e initializes the host drivers, opens the SPI port and claims
// the control pins.
func OpenEPD7in3e(port string, pins Pins, logger hclog.Logger) (*EPD7in3e, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: periph host init failed: %v", ferrors.ErrDisplayIO, err)
	}

	p, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open SPI port %q: %v", ferrors.ErrDisplayIO, port, err)
	}
	c, err := p.Connect(spiFrequency, spi.Mode0, 8)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: failed to connect SPI: %v", ferrors.ErrDisplayIO, err)
	}

	lookup := func(name string, required bool) (gpio.PinIO, error) {
		if name == "" {
			if required {
				return nil, fmt.Errorf("%w: missing required pin", ferrors.ErrDisplayIO)
			}
			return nil, nil
		}
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("%w: gpio %s not found", ferrors.ErrDisplayIO, name)
		}
		return pin, nil
	}

	var rst, dc, cs, busy, pwr gpio.PinIO
	for _, l := range []struct {
		dst      *gpio.PinIO
		name     string
		required bool
	}{
		{&rst, pins.Reset, true},
		{&dc, pins.DC, true},
		{&cs, pins.CS, false},
		{&busy, pins.Busy, true},
		{&pwr, pins.Power, false},
	} {
		pin, err := lookup(l.name, l.required)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		*l.dst = pin
	}

	d := newEPD7in3e(c, p, rst, dc, busy, logger)
	if cs != nil {
		d.cs = cs
	}
	if pwr != nil {
		d.pwr = pwr
	}
	if err := busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: busy pin: %v", ferrors.ErrDisplayIO, err)
	}
	if lim, ok := c.(conn.Limits); ok && lim.MaxTxSize() > 0 {
		d.maxTx = lim.MaxTxSize()
	}
	return d, nil
}

func newEPD7in3e(c spi.Conn, closer io.Closer, rst, dc gpio.PinOut, busy gpio.PinIn, logger hclog.Logger) *EPD7in3e {
	return &EPD7in3e{
		conn:        c,
		closer:      closer,
		rst:         rst,
		dc:          dc,
		busy:        busy,
		maxTx:       defaultMaxTx,
		busyPoll:    5 * time.Millisecond,
		busyTimeout: 90 * time.Second,
		resetDelay:  20 * time.Millisecond,
		sleepSettle: 2 * time.Second,
		logger:      logging.OrNull(logger).Named("epd7in3e"),
	}
}

// Width returns the panel width, 800 pixels.
func (d *EPD7in3e) Width() int { return PanelWidth }

// Height returns the panel height, 480 pixels.
func (d *EPD7in3e) Height() int { return PanelHeight }

// Init powers the panel, resets it and loads the register setup.
func (d *EPD7in3e) Init(ctx context.Context) error {
	d.logger.Info("🔌 Initializing panel")
	if d.pwr != nil {
		if err := d.pwr.Out(gpio.High); err != nil {
			return d.ioErr("power on", err)
		}
	}
	if err := d.reset(); err != nil {
		return err
	}
	if err := d.waitBusy(ctx); err != nil {
		return err
	}
	time.Sleep(d.resetDelay)

	for _, step := range initSequence {
		if err := d.send(step.cmd, step.data...); err != nil {
			return err
		}
	}
	if err := d.send(cmdPowerOn); err != nil {
		return err
	}
	return d.waitBusy(ctx)
}

// Clear fills the panel with white.
func (d *EPD7in3e) Clear(ctx context.Context) error {
	d.logger.Info("🧽 Clearing panel")
	frame := bytes.Repeat([]byte{clearWhite}, PanelWidth*PanelHeight/2)
	if err := d.send(cmdDataStart, frame...); err != nil {
		return err
	}
	return d.refresh(ctx)
}

// Display shows an 800x480 palette bitmap. Palette indices go to the panel
// as-is: 0 black, 1 white, 2 yellow, 3 red, 5 blue, 6 green.
func (d *EPD7in3e) Display(ctx context.Context, path string) error {
	img, err := loadIndexed(path, PanelWidth, PanelHeight)
	if err != nil {
		return err
	}
	d.logger.Info("🖼️ Displaying image", "path", path)
	if err := d.send(cmdDataStart, pack4bpp(img)...); err != nil {
		return err
	}
	return d.refresh(ctx)
}

// Sleep puts the panel into deep sleep and releases the bus.
func (d *EPD7in3e) Sleep() error {
	d.logger.Info("😴 Panel going to sleep")
	err := d.send(cmdDeepSleep, deepSleepCheckCode)
	time.Sleep(d.sleepSettle)

	_ = d.rst.Out(gpio.Low)
	_ = d.dc.Out(gpio.Low)
	if d.pwr != nil {
		_ = d.pwr.Out(gpio.Low)
	}
	if d.closer != nil {
		if cerr := d.closer.Close(); cerr != nil && err == nil {
			err = d.ioErr("close SPI port", cerr)
		}
	}
	return err
}

func (d *EPD7in3e) refresh(ctx context.Context) error {
	if err := d.send(cmdPowerOn); err != nil {
		return err
	}
	if err := d.waitBusy(ctx); err != nil {
		return err
	}
	if err := d.send(cmdDisplayRefresh, 0x00); err != nil {
		return err
	}
	if err := d.waitBusy(ctx); err != nil {
		return err
	}
	if err := d.send(cmdPowerOff, 0x00); err != nil {
		return err
	}
	return d.waitBusy(ctx)
}

func (d *EPD7in3e) reset() error {
	for _, step := range []struct {
		level gpio.Level
		delay time.Duration
	}{
		{gpio.High, d.resetDelay},
		{gpio.Low, 2 * time.Millisecond},
		{gpio.High, d.resetDelay},
	} {
		if err := d.rst.Out(step.level); err != nil {
			return d.ioErr("reset", err)
		}
		time.Sleep(step.delay)
	}
	return nil
}

// send writes a command byte followed by its data.
func (d *EPD7in3e) send(cmd byte, data ...byte) error {
	if err := d.write(gpio.Low, []byte{cmd}); err != nil {
		return d.ioErr(fmt.Sprintf("command 0x%02X", cmd), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.write(gpio.High, data); err != nil {
		return d.ioErr(fmt.Sprintf("data for 0x%02X", cmd), err)
	}
	return nil
}

func (d *EPD7in3e) write(dc gpio.Level, buf []byte) error {
	if err := d.dc.Out(dc); err != nil {
		return err
	}
	if d.cs != nil {
		if err := d.cs.Out(gpio.Low); err != nil {
			return err
		}
		defer d.cs.Out(gpio.High)
	}
	for len(buf) > 0 {
		n := min(len(buf), d.maxTx)
		if err := d.conn.Tx(buf[:n], nil); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// waitBusy polls the busy line, which the panel holds low while working.
func (d *EPD7in3e) waitBusy(ctx context.Context) error {
	deadline := time.Now().Add(d.busyTimeout)
	for d.busy.Read() == gpio.Low {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: panel busy for more than %s", ferrors.ErrDisplayIO, d.busyTimeout)
		}
		time.Sleep(d.busyPoll)
	}
	return nil
}

func (d *EPD7in3e) ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ferrors.ErrDisplayIO, op, err)
}
