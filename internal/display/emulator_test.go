package display

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
)

func newTestEmulator(t *testing.T, displayDelay time.Duration) *Emulator {
	t.Helper()
	e, err := NewEmulator(EmulatorOptions{
		Width:        16,
		Height:       8,
		Dir:          filepath.Join(t.TempDir(), "snapshots"),
		DisplayDelay: displayDelay,
	})
	require.NoError(t, err)
	require.NoError(t, e.Init(context.Background()))
	return e
}

func TestEmulatorDisplayAndClear(t *testing.T) {
	e := newTestEmulator(t, 0)
	ctx := context.Background()
	path := writeIndexedBMP(t, 16, 8, 3)

	require.NoError(t, e.Display(ctx, path))
	assert.Equal(t, 1, e.Frames())

	f, err := os.Open(e.SnapshotPath())
	require.NoError(t, err)
	img, err := png.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})

	require.NoError(t, e.Clear(ctx))
	assert.Equal(t, 2, e.Frames())

	f, err = os.Open(e.SnapshotPath())
	require.NoError(t, err)
	img, err = png.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, color.RGBAModel.Convert(color.White), color.RGBAModel.Convert(img.At(5, 5)))

	require.NoError(t, e.Sleep())
}

func TestEmulatorDelayHonorsContext(t *testing.T) {
	e := newTestEmulator(t, time.Hour)
	path := writeIndexedBMP(t, 16, 8)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := e.Display(ctx, path)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, e.Frames())
	assert.NoFileExists(t, e.SnapshotPath())
}

func TestEmulatorMissingBitmap(t *testing.T) {
	e := newTestEmulator(t, 0)
	err := e.Display(context.Background(), filepath.Join(t.TempDir(), "nope.bmp"))
	assert.ErrorIs(t, err, ferrors.ErrDisplayIO)
}
