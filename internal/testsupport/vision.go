package testsupport

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"emotrack/internal/analyzer"
	"emotrack/internal/emotion"
	"emotrack/internal/imaging"
	"emotrack/internal/livesession"
)

// FakeDetector returns a fixed set of face boxes for every frame.
type FakeDetector struct {
	Faces []image.Rectangle
	Err   error
}

// DetectFaces implements analyzer.FaceDetector.
func (d *FakeDetector) DetectFaces(*image.Gray) ([]image.Rectangle, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]image.Rectangle, len(d.Faces))
	copy(out, d.Faces)
	return out, nil
}

// FakeClassifier replays queued probability vectors in order, repeating the
// last one once the queue is drained.
type FakeClassifier struct {
	mu      sync.Mutex
	outputs [][]float32
	calls   int
}

// NewFakeClassifier queues outputs, typically built with Probs.
func NewFakeClassifier(outputs ...[]float32) *FakeClassifier {
	return &FakeClassifier{outputs: outputs}
}

// Classify implements analyzer.Classifier.
func (c *FakeClassifier) Classify([]float32) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outputs) == 0 {
		return nil, errors.New("fake classifier has no outputs")
	}
	idx := min(c.calls, len(c.outputs)-1)
	c.calls++
	return c.outputs[idx], nil
}

// Calls returns how many times Classify ran.
func (c *FakeClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Loader returns a ClassifierLoader that hands out c and counts invocations.
func (c *FakeClassifier) Loader(loads *int) analyzer.ClassifierLoader {
	return func(string) (analyzer.Classifier, error) {
		if loads != nil {
			*loads++
		}
		return c, nil
	}
}

// Probs builds a probability vector where label scores conf and the remaining
// mass is spread evenly over the other labels.
func Probs(label emotion.Label, conf float32) []float32 {
	labels := emotion.Labels()
	rest := (1 - conf) / float32(len(labels)-1)
	out := make([]float32, len(labels))
	for i, l := range labels {
		if l == label {
			out[i] = conf
		} else {
			out[i] = rest
		}
	}
	return out
}

// Frame returns a synthetic mid-grey RGBA frame.
func Frame(width, height int) *image.RGBA {
	return imaging.Fill(width, height, color.RGBA{R: 128, G: 128, B: 128, A: 255})
}

// FaceSummary builds a one-detection frame summary with a usable face crop.
func FaceSummary(label emotion.Label, conf float64) *emotion.FrameSummary {
	crop := imaging.Fill(24, 24, color.RGBA{R: 200, G: 160, B: 140, A: 255})
	det := emotion.Detection{Label: label, Confidence: conf, Box: emotion.BoundingBox{X: 4, Y: 4, Width: 24, Height: 24}}
	return analyzer.BuildSummary([]emotion.Detection{det}, []image.Image{crop})
}

// VideoRecorder is an in-memory VideoWriterFactory that records every writer
// it opens.
type VideoRecorder struct {
	mu      sync.Mutex
	Writers []*FakeVideoWriter
	OpenErr error
	// WriteErr is copied into each new writer.
	WriteErr error
}

// Open implements livesession.VideoWriterFactory.
func (r *VideoRecorder) Open(path string, fps float64, width, height int) (livesession.VideoWriter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	w := &FakeVideoWriter{Path: path, FPS: fps, Width: width, Height: height, writeErr: r.WriteErr}
	r.Writers = append(r.Writers, w)
	return w, nil
}

// Opened returns how many writers were created.
func (r *VideoRecorder) Opened() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Writers)
}

// FakeVideoWriter keeps frames in memory.
type FakeVideoWriter struct {
	Path   string
	FPS    float64
	Width  int
	Height int

	mu       sync.Mutex
	frames   []image.Image
	closed   bool
	writeErr error
}

// Write implements livesession.VideoWriter.
func (w *FakeVideoWriter) Write(frame image.Image) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("writer closed")
	}
	if w.writeErr != nil {
		return w.writeErr
	}
	w.frames = append(w.frames, frame)
	return nil
}

// Close implements livesession.VideoWriter.
func (w *FakeVideoWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Frames returns the frames written so far.
func (w *FakeVideoWriter) Frames() []image.Image {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]image.Image, len(w.frames))
	copy(out, w.frames)
	return out
}

// Closed reports whether Close was called.
func (w *FakeVideoWriter) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
