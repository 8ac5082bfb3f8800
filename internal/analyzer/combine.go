package analyzer

import (
	"image"

	"emotrack/internal/emotion"
	"emotrack/internal/services"
)

// Combine folds per-frame summaries from one batch into a single result.
//
// Counts add up across frames and the dominant label is count-based. The best
// frame, the one with the highest dominant confidence (earliest wins ties),
// supplies detections, the annotated image, and the reported confidence. Per
// label faces and confidences are the maxima across all frames.
func Combine(summaries []*emotion.FrameSummary) (*emotion.BatchSummary, error) {
	frames := make([]*emotion.FrameSummary, 0, len(summaries))
	for _, s := range summaries {
		if s != nil {
			frames = append(frames, s)
		}
	}
	if len(frames) == 0 {
		return nil, services.Wrap(services.ErrNoDetections, "analyzer", "combine", "no frame produced a detection", nil)
	}

	result := &emotion.BatchSummary{
		LabelFaces:      make(map[emotion.Label]image.Image),
		LabelConfidence: make(map[emotion.Label]float64),
		FramesAnalyzed:  len(frames),
		FramesSampled:   len(frames),
	}
	faceConfidence := make(map[emotion.Label]float64)

	best := 0
	for i, frame := range frames {
		result.Counts.Merge(frame.Counts)
		if frame.DominantConfidence > frames[best].DominantConfidence {
			best = i
		}
		for label, face := range frame.LabelFaces {
			if !emotion.Usable(face) {
				continue
			}
			conf := frame.LabelConfidence[label]
			if existing, ok := faceConfidence[label]; ok && conf <= existing {
				continue
			}
			faceConfidence[label] = conf
			result.LabelFaces[label] = face
		}
		for label, conf := range frame.LabelConfidence {
			if existing, ok := result.LabelConfidence[label]; !ok || conf > existing {
				result.LabelConfidence[label] = conf
			}
		}
	}

	bestFrame := frames[best]
	result.BestFrameIndex = best
	result.Confidence = bestFrame.DominantConfidence
	result.Detections = bestFrame.Detections
	result.Annotated = bestFrame.Annotated
	if label, _, ok := result.Counts.Dominant(); ok {
		result.DominantLabel = label
	}
	if face := result.LabelFaces[result.DominantLabel]; emotion.Usable(face) {
		result.DominantFace = face
	} else {
		result.DominantFace = bestFrame.DominantFace
	}
	return result, nil
}
