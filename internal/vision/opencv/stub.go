//go:build nogocv

package opencv

import (
	"image"

	"emotrack/internal/analyzer"
	"emotrack/internal/livesession"
	"emotrack/internal/services"
)

func unavailable(op string) error {
	return services.Wrap(services.ErrModelUnavailable, "opencv", op, "built without OpenCV (nogocv)", nil)
}

// CascadeDetector is unavailable without OpenCV.
type CascadeDetector struct{}

// NewCascadeDetector always fails without OpenCV.
func NewCascadeDetector(string, float64, int, int) (*CascadeDetector, error) {
	return nil, unavailable("load cascade")
}

// DetectFaces always fails without OpenCV.
func (*CascadeDetector) DetectFaces(*image.Gray) ([]image.Rectangle, error) {
	return nil, unavailable("detect faces")
}

// Close is a no-op.
func (*CascadeDetector) Close() error { return nil }

// LoadClassifier always fails without OpenCV.
func LoadClassifier(string) (analyzer.Classifier, error) {
	return nil, unavailable("load classifier")
}

// OpenVideoWriter always fails without OpenCV.
func OpenVideoWriter(string, float64, int, int) (livesession.VideoWriter, error) {
	return nil, services.Wrap(services.ErrStorageFailure, "opencv", "open video writer", "built without OpenCV (nogocv)", nil)
}

// VideoFile is unavailable without OpenCV.
type VideoFile struct{}

// OpenVideo always fails without OpenCV.
func OpenVideo(string) (*VideoFile, error) {
	return nil, unavailable("open video")
}

// Next always reports an empty stream.
func (*VideoFile) Next() (image.Image, error) { return nil, unavailable("read video") }

// Close is a no-op.
func (*VideoFile) Close() error { return nil }
