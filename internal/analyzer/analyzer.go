package analyzer

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"emotrack/internal/emotion"
	"emotrack/internal/imaging"
	"emotrack/internal/logging"
	"emotrack/internal/metrics"
	"emotrack/internal/services"
)

// InputSize is the side length of the square grayscale patch fed to the
// classifier.
const InputSize = 48

// FaceDetector locates axis-aligned face regions in a grayscale frame.
type FaceDetector interface {
	DetectFaces(gray *image.Gray) ([]image.Rectangle, error)
}

// Classifier maps a normalized InputSize x InputSize patch (row-major, values
// in [0,1]) to a probability vector over emotion.Labels().
type Classifier interface {
	Classify(input []float32) ([]float32, error)
}

// ClassifierLoader opens the classification model. It is invoked at most once
// per Analyzer.
type ClassifierLoader func(path string) (Classifier, error)

// Options configures an Analyzer.
type Options struct {
	Detector    FaceDetector
	Loader      ClassifierLoader
	ModelPath   string
	CascadePath string
	Logger      *slog.Logger
}

// Analyzer detects and classifies faces in single frames. It is safe for
// concurrent use.
type Analyzer struct {
	detector    FaceDetector
	loader      ClassifierLoader
	modelPath   string
	cascadePath string
	logger      *slog.Logger

	loadOnce   sync.Once
	classifier Classifier
	loadErr    error
	loaded     atomic.Bool

	inferMu sync.Mutex
}

// New constructs an Analyzer. The model is not touched until the first frame
// with a face is analyzed.
func New(opts Options) (*Analyzer, error) {
	if opts.Detector == nil {
		return nil, services.Wrap(services.ErrConfiguration, "analyzer", "new", "face detector is required", nil)
	}
	if opts.Loader == nil {
		return nil, services.Wrap(services.ErrConfiguration, "analyzer", "new", "classifier loader is required", nil)
	}
	return &Analyzer{
		detector:    opts.Detector,
		loader:      opts.Loader,
		modelPath:   opts.ModelPath,
		cascadePath: opts.CascadePath,
		logger:      logging.NewComponentLogger(opts.Logger, "analyzer"),
	}, nil
}

// AnalyzeBytes decodes an encoded image and analyzes it.
func (a *Analyzer) AnalyzeBytes(data []byte) (*emotion.FrameSummary, image.Image, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	summary, err := a.Analyze(img)
	if err != nil {
		return nil, img, err
	}
	return summary, img, nil
}

// Analyze detects faces in img, classifies each one, and summarizes the frame.
func (a *Analyzer) Analyze(img image.Image) (*emotion.FrameSummary, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, services.Wrap(services.ErrInvalidFrame, "analyzer", "analyze", "frame is empty", nil)
	}
	start := time.Now()
	defer func() {
		metrics.FrameAnalysisDuration.Observe(time.Since(start).Seconds())
	}()

	gray := imaging.Grayscale(img)
	faces, err := a.detector.DetectFaces(gray)
	if err != nil {
		if errors.Is(err, services.ErrModelUnavailable) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrInvalidFrame, "analyzer", "detect faces", "", err)
	}

	bounds := img.Bounds()
	boxes := make([]image.Rectangle, 0, len(faces))
	for _, face := range faces {
		clipped := face.Intersect(bounds)
		if clipped.Empty() {
			continue
		}
		boxes = append(boxes, clipped)
	}
	if len(boxes) == 0 {
		return nil, services.Wrap(services.ErrNoFaceDetected, "analyzer", "detect faces", "", nil)
	}

	classifier, err := a.model()
	if err != nil {
		return nil, err
	}

	detections := make([]emotion.Detection, 0, len(boxes))
	crops := make([]image.Image, 0, len(boxes))
	for _, box := range boxes {
		patch := imaging.Normalize(imaging.ResizeGray(imaging.CropGray(gray, box), InputSize, InputSize))
		label, confidence, err := a.classify(classifier, patch)
		if err != nil {
			return nil, err
		}
		detections = append(detections, emotion.Detection{
			Label:      label,
			Confidence: confidence,
			Box:        emotion.BoxFromRect(box.Sub(bounds.Min)),
		})
		crops = append(crops, imaging.Crop(img, box))
		metrics.DetectionsTotal.WithLabelValues(string(label)).Inc()
	}

	summary := BuildSummary(detections, crops)
	summary.Annotated = annotate(img, detections)
	return summary, nil
}

// BuildSummary tallies detections into a frame summary. crops, when provided,
// must be index-aligned with detections; the crop of each label's
// highest-confidence detection becomes that label's face.
func BuildSummary(detections []emotion.Detection, crops []image.Image) *emotion.FrameSummary {
	summary := &emotion.FrameSummary{
		Detections:      detections,
		LabelConfidence: make(map[emotion.Label]float64),
		LabelFaces:      make(map[emotion.Label]image.Image),
	}
	for i, det := range detections {
		summary.Counts.Add(det.Label, 1)
		best, seen := summary.LabelConfidence[det.Label]
		if seen && det.Confidence <= best {
			continue
		}
		summary.LabelConfidence[det.Label] = det.Confidence
		if i < len(crops) && emotion.Usable(crops[i]) {
			summary.LabelFaces[det.Label] = crops[i]
		}
	}
	if label, _, ok := summary.Counts.Dominant(); ok {
		summary.DominantLabel = label
		summary.DominantConfidence = summary.LabelConfidence[label]
		summary.DominantFace = summary.LabelFaces[label]
	}
	return summary
}

func (a *Analyzer) classify(classifier Classifier, patch []float32) (emotion.Label, float64, error) {
	a.inferMu.Lock()
	probs, err := classifier.Classify(patch)
	a.inferMu.Unlock()
	if err != nil {
		return "", 0, services.Wrap(services.ErrModelUnavailable, "analyzer", "classify", "", err)
	}

	labels := emotion.Labels()
	if len(probs) < len(labels) {
		return "", 0, services.Wrap(services.ErrModelUnavailable, "analyzer", "classify",
			fmt.Sprintf("model returned %d scores, expected %d", len(probs), len(labels)), nil)
	}
	best := 0
	for i := 1; i < len(labels); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	label, _ := emotion.LabelAt(best)
	return label, emotion.RoundConfidence(float64(probs[best])), nil
}

func (a *Analyzer) model() (Classifier, error) {
	a.loadOnce.Do(func() {
		if a.modelPath != "" {
			if _, err := os.Stat(a.modelPath); err != nil {
				a.loadErr = services.Wrap(services.ErrModelUnavailable, "analyzer", "load model",
					"weights not found at "+a.modelPath, err)
				a.logModelFailure()
				return
			}
		}
		classifier, err := a.loader(a.modelPath)
		if err != nil {
			if !errors.Is(err, services.ErrModelUnavailable) {
				err = services.Wrap(services.ErrModelUnavailable, "analyzer", "load model", "", err)
			}
			a.loadErr = err
			a.logModelFailure()
			return
		}
		if classifier == nil {
			a.loadErr = services.Wrap(services.ErrModelUnavailable, "analyzer", "load model", "loader returned no classifier", nil)
			a.logModelFailure()
			return
		}
		a.classifier = classifier
		a.loaded.Store(true)
		a.logger.Info("emotion model loaded", logging.String("model_path", a.modelPath))
	})
	return a.classifier, a.loadErr
}

func (a *Analyzer) logModelFailure() {
	a.logger.Error("emotion model unavailable",
		logging.Error(a.loadErr),
		logging.String(logging.FieldEventType, "model_unavailable"),
		logging.String(logging.FieldErrorHint, "place the model weights at model.classifier_path and restart"),
		logging.String(logging.FieldImpact, "frames with faces cannot be classified"),
	)
}

// Metadata describes the label set and model artifact availability.
type Metadata struct {
	Labels         []emotion.Label `json:"labels"`
	WeightsPath    string          `json:"weights_path"`
	HasModel       bool            `json:"has_model"`
	HasCascade     bool            `json:"has_cascade"`
	Loaded         bool            `json:"loaded"`
	StorageRoot    string          `json:"storage_root,omitempty"`
	RawSubdir      string          `json:"raw_subdir,omitempty"`
	SnapshotSubdir string          `json:"snapshot_subdir,omitempty"`
}

// ModelMetadata reports the label set and whether model artifacts are present.
func (a *Analyzer) ModelMetadata() Metadata {
	return Metadata{
		Labels:      emotion.Labels(),
		WeightsPath: filepath.Base(a.modelPath),
		HasModel:    fileExists(a.modelPath),
		HasCascade:  fileExists(a.cascadePath),
		Loaded:      a.loaded.Load(),
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func annotate(img image.Image, detections []emotion.Detection) image.Image {
	offset := img.Bounds().Min
	boxes := make([]imaging.Box, 0, len(detections))
	for _, det := range detections {
		boxes = append(boxes, imaging.Box{
			Rect:       det.Box.Rect().Add(offset),
			Label:      string(det.Label),
			Confidence: det.Confidence,
		})
	}
	return imaging.Annotate(img, boxes)
}
