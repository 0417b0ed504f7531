package convert

import (
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var resampler = resize.Lanczos3

// toRGB flattens any decoded image onto an opaque white RGBA canvas whose
// origin is (0, 0).
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Over)
	return dst
}

// shouldRotate reports whether a w×h image is closer to the target aspect
// ratio after a quarter turn. Ties keep the original orientation.
func shouldRotate(w, h, targetW, targetH int) bool {
	if w <= 0 || h <= 0 || targetH <= 0 {
		return false
	}
	aspect := float64(w) / float64(h)
	rotated := 1.0 / aspect
	target := float64(targetW) / float64(targetH)
	return math.Abs(rotated-target) < math.Abs(aspect-target)
}

// rotate90 turns src a quarter turn counter-clockwise, swapping its
// dimensions.
func rotate90(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	// (x, y) -> (y, w - x)
	s2d := f64.Aff3{
		0, 1, 0,
		-1, 0, float64(w),
	}
	xdraw.NearestNeighbor.Transform(dst, s2d, src, b, xdraw.Src, nil)
	return dst
}

// fitWithin returns the largest size with the aspect ratio of w×h that fits
// inside maxW×maxH without upscaling.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	newW, newH := w, h
	if newW > maxW {
		newH = h * maxW / w
		if newH < 1 {
			newH = 1
		}
		newW = maxW
	}
	if newH > maxH {
		newW = newW * maxH / newH
		if newW < 1 {
			newW = 1
		}
		newH = maxH
	}
	return newW, newH
}

// cropBox returns the centered region of a w×h image that has the target
// aspect ratio.
func cropBox(w, h, targetW, targetH int) image.Rectangle {
	imgAspect := float64(w) / float64(h)
	target := float64(targetW) / float64(targetH)

	if imgAspect > target {
		newW := max(int(float64(h)*target), 1)
		return image.Rect((w-newW)/2, 0, (w+newW)/2, h)
	}
	newH := max(int(float64(w)/target), 1)
	return image.Rect(0, (h-newH)/2, w, (h+newH)/2)
}

func fit(src *image.RGBA, mode RatioMode, targetW, targetH int) *image.RGBA {
	switch mode {
	case Stretch:
		return scaleTo(src, targetW, targetH)
	case Crop:
		box := cropBox(src.Bounds().Dx(), src.Bounds().Dy(), targetW, targetH)
		return scaleTo(subRGBA(src, box), targetW, targetH)
	default:
		return letterbox(src, targetW, targetH)
	}
}

func letterbox(src *image.RGBA, targetW, targetH int) *image.RGBA {
	w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), targetW, targetH)
	scaled := scaleTo(src, w, h)

	canvas := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	x := (targetW - w) / 2
	y := (targetH - h) / 2
	xdraw.Draw(canvas, image.Rect(x, y, x+w, y+h), scaled, image.Point{}, xdraw.Src)
	return canvas
}

// scaleTo resamples src to exactly w×h. An identity resize is a copy.
func scaleTo(src *image.RGBA, w, h int) *image.RGBA {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return subRGBA(src, b)
	}
	resized := resize.Resize(uint(w), uint(h), src, resampler)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), resized, resized.Bounds().Min, xdraw.Src)
	return dst
}

// subRGBA copies r out of src into a new image with origin (0, 0).
func subRGBA(src *image.RGBA, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, r.Min, xdraw.Src)
	return dst
}
