package analyzer

import (
	"context"
	"errors"
	"image"
	"io"

	"emotrack/internal/emotion"
	"emotrack/internal/logging"
	"emotrack/internal/services"
)

const (
	// DefaultMaxFrames bounds how many frames are read from an uploaded video.
	DefaultMaxFrames = 180
	// PreviewMaxFrames bounds frames read for a quick preview.
	PreviewMaxFrames = 90
	// DefaultSampleRate analyzes every Nth frame.
	DefaultSampleRate = 6
)

// FrameSource yields decoded frames in order. Next returns io.EOF once the
// stream is exhausted.
type FrameSource interface {
	Next() (image.Image, error)
	Close() error
}

// SampleOptions controls frame sampling for video analysis.
type SampleOptions struct {
	MaxFrames  int
	SampleRate int
}

func (o SampleOptions) withDefaults() SampleOptions {
	if o.MaxFrames <= 0 {
		o.MaxFrames = DefaultMaxFrames
	}
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	return o
}

// AnalyzeVideo reads up to MaxFrames frames from src, analyzes every
// SampleRate-th one, and combines the summaries. Frames without a usable face
// are skipped; model failures and cancellation abort the run. The source is
// not closed.
func (a *Analyzer) AnalyzeVideo(ctx context.Context, src FrameSource, opts SampleOptions) (*emotion.BatchSummary, error) {
	opts = opts.withDefaults()
	var (
		summaries []*emotion.FrameSummary
		sampled   int
	)
	progress := logging.NewProgressSampler(25)
	for index := 0; index < opts.MaxFrames; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrInvalidFrame, "analyzer", "read video", "", err)
		}
		if percent := float64(index+1) * 100 / float64(opts.MaxFrames); progress.ShouldLog(percent, "sampling") {
			a.logger.Debug("video sampling progress",
				logging.Float64(logging.FieldProgressPercent, percent),
				logging.Int("frame_index", index),
				logging.Int("sampled", sampled),
			)
		}
		if index%opts.SampleRate != 0 {
			continue
		}
		sampled++
		summary, err := a.Analyze(frame)
		if err != nil {
			if errors.Is(err, services.ErrNoFaceDetected) || errors.Is(err, services.ErrInvalidFrame) {
				a.logger.Debug("skipping sampled frame",
					logging.Int("frame_index", index),
					logging.String("reason", string(services.KindOf(err))),
				)
				continue
			}
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	result, err := Combine(summaries)
	if err != nil {
		return nil, err
	}
	result.FramesSampled = sampled
	return result, nil
}

// AnalyzeImage analyzes a single image and presents it as a one-frame batch.
func (a *Analyzer) AnalyzeImage(img image.Image) (*emotion.BatchSummary, error) {
	summary, err := a.Analyze(img)
	if err != nil {
		return nil, err
	}
	return Combine([]*emotion.FrameSummary{summary})
}
