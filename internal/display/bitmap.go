package display

import (
	"fmt"
	"image"
	"os"

	"golang.org/x/image/bmp"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
)

// loadBitmap decodes the BMP at path.
func loadBitmap(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ferrors.ErrDisplayIO, path, err)
	}
	defer f.Close()

	img, err := bmp.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ferrors.ErrDisplayIO, path, err)
	}
	return img, nil
}

// loadIndexed decodes an 8-bit indexed BMP of exactly width x height.
func loadIndexed(path string, width, height int) (*image.Paletted, error) {
	img, err := loadBitmap(path)
	if err != nil {
		return nil, err
	}
	p, ok := img.(*image.Paletted)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a palette bitmap", ferrors.ErrDisplayIO, path)
	}
	if b := p.Bounds(); b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("%w: %s is %dx%d, panel is %dx%d",
			ferrors.ErrDisplayIO, path, b.Dx(), b.Dy(), width, height)
	}
	return p, nil
}

// pack4bpp packs palette indices two pixels per byte, left pixel in the high
// nibble. Width must be even.
func pack4bpp(p *image.Paletted) []byte {
	b := p.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, w*h/2)
	for y := 0; y < h; y++ {
		row := p.Pix[y*p.Stride : y*p.Stride+w]
		for x := 0; x+1 < w; x += 2 {
			out = append(out, row[x]&0x0f<<4|row[x+1]&0x0f)
		}
	}
	return out
}
