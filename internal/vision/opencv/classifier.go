//go:build !nogocv

package opencv

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"

	"gocv.io/x/gocv"

	"emotrack/internal/analyzer"
	"emotrack/internal/services"
)

// ONNXClassifier runs the emotion model on 48x48 grayscale patches.
type ONNXClassifier struct {
	net gocv.Net
}

// LoadClassifier reads an ONNX model. Its signature matches
// analyzer.ClassifierLoader.
func LoadClassifier(path string) (analyzer.Classifier, error) {
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return nil, services.Wrap(services.ErrModelUnavailable, "opencv", "load classifier", "model file missing: "+path, err)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		_ = net.Close()
		return nil, services.Wrap(services.ErrModelUnavailable, "opencv", "load classifier", "cannot read "+path, nil)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		_ = net.Close()
		return nil, services.Wrap(services.ErrModelUnavailable, "opencv", "load classifier", "set backend", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		_ = net.Close()
		return nil, services.Wrap(services.ErrModelUnavailable, "opencv", "load classifier", "set target", err)
	}
	return &ONNXClassifier{net: net}, nil
}

// Classify feeds one normalized patch through the network. Callers serialize
// access.
func (c *ONNXClassifier) Classify(input []float32) ([]float32, error) {
	size := analyzer.InputSize
	if len(input) != size*size {
		return nil, fmt.Errorf("classifier input has %d values, want %d", len(input), size*size)
	}
	buf := make([]byte, 4*len(input))
	for i, v := range input {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	patch, err := gocv.NewMatFromBytes(size, size, gocv.MatTypeCV32F, buf)
	if err != nil {
		return nil, fmt.Errorf("build input mat: %w", err)
	}
	defer patch.Close()

	blob := gocv.BlobFromImage(patch, 1.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	defer out.Close()
	if out.Empty() {
		return nil, fmt.Errorf("classifier produced no output")
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read classifier output: %w", err)
	}
	// data aliases the Mat, which is released on return.
	return append([]float32(nil), data...), nil
}

// Close releases the network.
func (c *ONNXClassifier) Close() error {
	return c.net.Close()
}
