// Package convert transcodes photos into palette-indexed bitmaps sized for a
// fixed-resolution e-paper panel.
//
// A conversion decodes the source, optionally rotates it a quarter turn to
// better match the panel orientation, fits it to the panel according to a
// RatioMode, dithers it onto a fixed 256 entry palette with Floyd-Steinberg
// error diffusion and encodes the result as an uncompressed 8-bit BMP whose
// pixel values are palette indices.
package convert

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/natefinch/atomic"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
	"github.com/provide-io/einkframe/pkg/palette"
)

// Options configures a Converter.
type Options struct {
	Width   int
	Height  int
	Rotate  bool
	Mode    RatioMode
	Palette *palette.Palette
	Logger  hclog.Logger
}

// Converter is safe for concurrent use; it holds no mutable state.
type Converter struct {
	width   int
	height  int
	rotate  bool
	mode    RatioMode
	palette *palette.Palette
	logger  hclog.Logger
}

// New creates a Converter.
func New(opts Options) (*Converter, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: target size %dx%d", ferrors.ErrConfig, opts.Width, opts.Height)
	}
	if opts.Palette == nil {
		return nil, fmt.Errorf("%w: no palette loaded", ferrors.ErrInvalidPalette)
	}
	if opts.Mode < Maintain || opts.Mode > Crop {
		return nil, fmt.Errorf("%w: ratio mode %d", ferrors.ErrConfig, int(opts.Mode))
	}
	return &Converter{
		width:   opts.Width,
		height:  opts.Height,
		rotate:  opts.Rotate,
		mode:    opts.Mode,
		palette: opts.Palette,
		logger:  logging.OrNull(opts.Logger).Named("convert"),
	}, nil
}

// Convert reads the image at srcPath and returns the encoded bitmap.
func (c *Converter) Convert(srcPath string) ([]byte, error) {
	c.logger.Debug("🎨 Converting image", "source", srcPath, "mode", c.mode, "rotate", c.rotate)

	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ferrors.ErrImageDecode, srcPath, err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ferrors.ErrImageDecode, srcPath, err)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s: empty image", ferrors.ErrImageDecode, srcPath)
	}
	c.logger.Trace("Decoded image", "format", format, "size", src.Bounds().Size())

	indexed := c.Transform(src)

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, indexed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ferrors.ErrImageEncode, srcPath, err)
	}
	return buf.Bytes(), nil
}

// Transform runs the rotate, fit and quantize steps on an already decoded
// image.
func (c *Converter) Transform(src image.Image) *image.Paletted {
	rgb := toRGB(src)

	if c.rotate && shouldRotate(rgb.Bounds().Dx(), rgb.Bounds().Dy(), c.width, c.height) {
		rgb = rotate90(rgb)
		c.logger.Debug("↪️ Rotated image to better fit aspect ratio")
	}

	fitted := fit(rgb, c.mode, c.width, c.height)
	return quantize(fitted, c.palette)
}

// ConvertFile converts srcPath and writes the bitmap to dstPath through a
// temporary file in the same directory, so dstPath is either absent or
// complete.
func (c *Converter) ConvertFile(srcPath, dstPath string) error {
	data, err := c.Convert(srcPath)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(dstPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write %s: %v", ferrors.ErrImageEncode, dstPath, err)
	}
	c.logger.Info("💾 Saved processed image", "path", dstPath, "bytes", len(data))
	return nil
}

// quantize maps img onto the palette with Floyd-Steinberg dithering. Nearest
// color ties resolve to the lowest palette index.
func quantize(img *image.RGBA, p *palette.Palette) *image.Paletted {
	dst := image.NewPaletted(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()), p.Colors())
	xdraw.FloydSteinberg.Draw(dst, dst.Bounds(), img, img.Bounds().Min)
	return dst
}
