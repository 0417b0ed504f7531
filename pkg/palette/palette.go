// Package palette loads Adobe Color Table (.act) palettes. An ACT file is 256
// sequential RGB triplets; some writers append a 4 byte trailer with the
// used color count and transparency index, which is ignored.
package palette

import (
	"fmt"
	"image/color"
	"os"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
)

const (
	// Size is the fixed number of entries in a palette.
	Size = 256
	// MinFileSize is the smallest valid ACT payload.
	MinFileSize = Size * 3
)

// Palette is an immutable, ordered 256 entry color table. Index i of the
// palette is the pixel value written for color i, so the order must match
// what the display hardware expects.
type Palette struct {
	colors color.Palette
}

// Parse builds a Palette from raw ACT bytes.
func Parse(data []byte) (*Palette, error) {
	if len(data) < MinFileSize {
		return nil, fmt.Errorf("%w: need at least %d bytes (256 RGB triplets), got %d",
			ferrors.ErrInvalidPalette, MinFileSize, len(data))
	}

	colors := make(color.Palette, Size)
	for i := 0; i < Size; i++ {
		off := i * 3
		colors[i] = color.RGBA{R: data[off], G: data[off+1], B: data[off+2], A: 0xff}
	}
	return &Palette{colors: colors}, nil
}

// Load reads and parses an ACT file.
func Load(path string) (*Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ferrors.ErrInvalidPalette, path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Colors returns a copy of the palette suitable for image.Paletted.
func (p *Palette) Colors() color.Palette {
	out := make(color.Palette, len(p.colors))
	copy(out, p.colors)
	return out
}

// SixColor is the Waveshare 7.3" (E) panel palette: black, white, yellow,
// red, an unused slot, blue, green. The slot order equals the 4 bit color
// codes the controller accepts. Unused entries repeat black and never win a
// nearest-color tie because lower indices are preferred.
func SixColor() *Palette {
	data := make([]byte, MinFileSize)
	entries := [][3]byte{
		{0x00, 0x00, 0x00},
		{0xff, 0xff, 0xff},
		{0xff, 0xff, 0x00},
		{0xff, 0x00, 0x00},
		{0x00, 0x00, 0x00},
		{0x00, 0x00, 0xff},
		{0x00, 0xff, 0x00},
	}
	for i, e := range entries {
		copy(data[i*3:], e[:])
	}
	p, _ := Parse(data)
	return p
}
