package imaging

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Box is a labelled rectangle to draw onto a frame.
type Box struct {
	Rect       image.Rectangle
	Label      string
	Confidence float64
}

const annotateStroke = 2

var annotateColor = color.Black

// Annotate returns a copy of img with every box outlined and captioned as
// "Label 0.87" just above the box.
func Annotate(img image.Image, boxes []Box) *image.RGBA {
	out := ToRGBA(img)
	offset := img.Bounds().Min
	ink := image.NewUniform(annotateColor)
	for _, box := range boxes {
		r := box.Rect.Sub(offset).Intersect(out.Bounds())
		if r.Empty() {
			continue
		}
		strokeRect(out, r, ink)

		caption := fmt.Sprintf("%s %.2f", box.Label, box.Confidence)
		baseline := max(20, r.Min.Y-10)
		drawer := font.Drawer{
			Dst:  out,
			Src:  ink,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(r.Min.X, baseline),
		}
		drawer.DrawString(caption)
	}
	return out
}

func strokeRect(dst *image.RGBA, r image.Rectangle, ink image.Image) {
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+annotateStroke),
		image.Rect(r.Min.X, r.Max.Y-annotateStroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+annotateStroke, r.Max.Y),
		image.Rect(r.Max.X-annotateStroke, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, edge := range edges {
		xdraw.Draw(dst, edge.Intersect(r), ink, image.Point{}, xdraw.Src)
	}
}
