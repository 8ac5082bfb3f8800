//go:build !nogocv

package opencv

import (
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"emotrack/internal/services"
)

// CascadeDetector finds faces with a Haar cascade. It serializes calls because
// the underlying classifier is not safe for concurrent use.
type CascadeDetector struct {
	mu           sync.Mutex
	cascade      gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
	minSize      image.Point
}

// NewCascadeDetector loads the cascade at path.
func NewCascadeDetector(path string, scaleFactor float64, minNeighbors, minFaceSize int) (*CascadeDetector, error) {
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return nil, services.Wrap(services.ErrModelUnavailable, "opencv", "load cascade", "cascade file missing: "+path, err)
	}
	cascade := gocv.NewCascadeClassifier()
	if !cascade.Load(path) {
		_ = cascade.Close()
		return nil, services.Wrap(services.ErrModelUnavailable, "opencv", "load cascade", "cannot read "+path, nil)
	}
	return &CascadeDetector{
		cascade:      cascade,
		scaleFactor:  scaleFactor,
		minNeighbors: minNeighbors,
		minSize:      image.Pt(minFaceSize, minFaceSize),
	}, nil
}

// DetectFaces returns face rectangles in gray's coordinate space.
func (d *CascadeDetector) DetectFaces(gray *image.Gray) ([]image.Rectangle, error) {
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidFrame, "opencv", "detect faces", "convert frame", err)
	}
	defer mat.Close()

	d.mu.Lock()
	rects := d.cascade.DetectMultiScaleWithParams(mat, d.scaleFactor, d.minNeighbors, 0, d.minSize, image.Point{})
	d.mu.Unlock()

	offset := gray.Bounds().Min
	out := make([]image.Rectangle, 0, len(rects))
	for _, r := range rects {
		out = append(out, r.Add(offset))
	}
	return out, nil
}

// Close releases the cascade.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cascade.Close()
}
