package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
)

type transfer struct {
	cmd  byte
	data []byte
}

// panelRecorder is a fake SPI connection that groups writes into commands
// and their data using the DC line.
type panelRecorder struct {
	mu        sync.Mutex
	dc        *gpiotest.Pin
	transfers []transfer
	writes    int
	closed    bool
}

func (r *panelRecorder) String() string      { return "panel-recorder" }
func (r *panelRecorder) Duplex() conn.Duplex { return conn.Half }

func (r *panelRecorder) Close() error {
	r.closed = true
	return nil
}

func (r *panelRecorder) TxPackets([]spi.Packet) error {
	return nil
}

func (r *panelRecorder) Tx(w, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.dc.Read() == gpio.Low {
		for _, b := range w {
			r.transfers = append(r.transfers, transfer{cmd: b})
		}
		return nil
	}
	last := &r.transfers[len(r.transfers)-1]
	last.data = append(last.data, w...)
	return nil
}

func (r *panelRecorder) commands() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, tr := range r.transfers {
		out = append(out, tr.cmd)
	}
	return out
}

func newTestPanel(t *testing.T) (*EPD7in3e, *panelRecorder, *gpiotest.Pin) {
	t.Helper()
	rst := &gpiotest.Pin{N: "RST", Num: 17}
	dc := &gpiotest.Pin{N: "DC", Num: 25}
	busy := &gpiotest.Pin{N: "BUSY", Num: 24, L: gpio.High}
	rec := &panelRecorder{dc: dc}

	d := newEPD7in3e(rec, rec, rst, dc, busy, nil)
	d.pwr = &gpiotest.Pin{N: "PWR", Num: 18}
	d.resetDelay = 0
	d.sleepSettle = 0
	d.busyPoll = time.Millisecond
	return d, rec, busy
}

func TestEPDInitSequence(t *testing.T) {
	d, rec, _ := newTestPanel(t)
	require.NoError(t, d.Init(context.Background()))

	want := make([]transfer, 0, len(initSequence)+1)
	for _, step := range initSequence {
		want = append(want, transfer{cmd: step.cmd, data: step.data})
	}
	want = append(want, transfer{cmd: cmdPowerOn})
	assert.Equal(t, want, rec.transfers)
	assert.Equal(t, gpio.High, d.pwr.(*gpiotest.Pin).Read())
	assert.Equal(t, gpio.High, d.rst.(*gpiotest.Pin).Read())
}

func TestEPDDisplay(t *testing.T) {
	d, rec, _ := newTestPanel(t)
	path := writeIndexedBMP(t, PanelWidth, PanelHeight, 2, 3, 6)

	require.NoError(t, d.Display(context.Background(), path))

	assert.Equal(t, []byte{cmdDataStart, cmdPowerOn, cmdDisplayRefresh, cmdPowerOff}, rec.commands())
	frame := rec.transfers[0].data
	require.Len(t, frame, PanelWidth*PanelHeight/2)
	assert.Equal(t, []byte{0x23, 0x61, 0x11}, frame[:3])
	assert.Equal(t, []byte{0x00}, rec.transfers[2].data)
	assert.Equal(t, []byte{0x00}, rec.transfers[3].data)
	// The frame is split to fit the SPI buffer.
	assert.Greater(t, rec.writes, len(frame)/defaultMaxTx)
}

func TestEPDClear(t *testing.T) {
	d, rec, _ := newTestPanel(t)
	require.NoError(t, d.Clear(context.Background()))

	frame := rec.transfers[0].data
	require.Len(t, frame, PanelWidth*PanelHeight/2)
	for _, b := range frame {
		if b != clearWhite {
			t.Fatalf("clear frame contains 0x%02X", b)
		}
	}
}

func TestEPDDisplayRejectsWrongSize(t *testing.T) {
	d, rec, _ := newTestPanel(t)
	err := d.Display(context.Background(), writeIndexedBMP(t, 400, 240))
	assert.ErrorIs(t, err, ferrors.ErrDisplayIO)
	assert.Empty(t, rec.transfers)
}

func TestEPDBusyTimeout(t *testing.T) {
	d, _, busy := newTestPanel(t)
	require.NoError(t, busy.Out(gpio.Low))
	d.busyTimeout = 20 * time.Millisecond

	err := d.Clear(context.Background())
	assert.ErrorIs(t, err, ferrors.ErrDisplayIO)
}

func TestEPDBusyCancelled(t *testing.T) {
	d, _, busy := newTestPanel(t)
	require.NoError(t, busy.Out(gpio.Low))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Clear(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEPDSleep(t *testing.T) {
	d, rec, _ := newTestPanel(t)
	require.NoError(t, d.Sleep())

	assert.Equal(t, []transfer{{cmd: cmdDeepSleep, data: []byte{deepSleepCheckCode}}}, rec.transfers)
	assert.True(t, rec.closed)
	assert.Equal(t, gpio.Low, d.pwr.(*gpiotest.Pin).Read())
}
