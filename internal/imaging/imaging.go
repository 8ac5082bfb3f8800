package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"emotrack/internal/services"
)

// DefaultJPEGQuality is used when callers pass a non-positive quality.
const DefaultJPEGQuality = 90

var errEmptyImage = errors.New("image has no pixels")

// MaxPixels bounds the width*height a payload may declare before it is
// decoded.
const MaxPixels = 40_000_000

// Decode parses JPEG, PNG, BMP, or WebP bytes. Empty, undecodable, oversized,
// and zero-sized inputs yield ErrInvalidFrame.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrInvalidFrame, "imaging", "decode", "empty payload", nil)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidFrame, "imaging", "decode", "unsupported or corrupt image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, services.Wrap(services.ErrInvalidFrame, "imaging", "decode", format+" image is zero-sized", nil)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, services.Wrap(services.ErrInvalidFrame, "imaging", "decode",
			fmt.Sprintf("%s image is %dx%d, above the %d pixel limit", format, cfg.Width, cfg.Height, MaxPixels), nil)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidFrame, "imaging", "decode", "unsupported or corrupt image", err)
	}
	if img.Bounds().Empty() {
		return nil, services.Wrap(services.ErrInvalidFrame, "imaging", "decode", format+" image is zero-sized", nil)
	}
	return img, nil
}

// Grayscale converts img to a single-channel intensity image anchored at the
// same bounds.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	xdraw.Draw(gray, b, img, b.Min, xdraw.Src)
	return gray
}

// ToRGBA returns a copy of img with bounds rebased to the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)
	return out
}

// Crop copies the part of img inside r, clipped to the image bounds. The result
// is rebased to the origin and is empty when r misses the image entirely.
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	if r.Empty() {
		return out
	}
	xdraw.Draw(out, out.Bounds(), img, r.Min, xdraw.Src)
	return out
}

// CropGray is Crop for single-channel images.
func CropGray(img *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(img.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	if r.Empty() {
		return out
	}
	xdraw.Draw(out, out.Bounds(), img, r.Min, xdraw.Src)
	return out
}

// ResizeGray scales src to width x height with bilinear interpolation.
func ResizeGray(src *image.Gray, width, height int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// Normalize flattens a grayscale image row by row into intensities in [0,1].
func Normalize(g *image.Gray) []float32 {
	b := g.Bounds()
	out := make([]float32, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out = append(out, float32(g.GrayAt(x, y).Y)/255.0)
		}
	}
	return out
}

// Thumbnail center-crops img to a square and scales it to size x size.
func Thumbnail(img image.Image, size int) (*image.RGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errEmptyImage
	}
	if size <= 0 {
		size = 320
	}
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	square := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, square, xdraw.Src, nil)
	return dst, nil
}

// EncodeJPEG writes img as JPEG at the given quality.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if img == nil || img.Bounds().Empty() {
		return errEmptyImage
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// Fill returns a width x height image painted with c. Useful for placeholders
// and synthetic frames.
func Fill(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, xdraw.Src)
	return img
}
