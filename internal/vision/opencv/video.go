//go:build !nogocv

package opencv

import (
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"

	"emotrack/internal/livesession"
	"emotrack/internal/services"
)

const streamCodec = "mp4v"

type videoWriter struct {
	writer *gocv.VideoWriter
	width  int
	height int
}

// OpenVideoWriter creates an mp4v stream at path. Its signature matches
// livesession.VideoWriterFactory.
func OpenVideoWriter(path string, fps float64, width, height int) (livesession.VideoWriter, error) {
	writer, err := gocv.VideoWriterFile(path, streamCodec, fps, width, height, true)
	if err != nil {
		return nil, services.Wrap(services.ErrStorageFailure, "opencv", "open video writer", path, err)
	}
	if !writer.IsOpened() {
		_ = writer.Close()
		return nil, services.Wrap(services.ErrStorageFailure, "opencv", "open video writer", path+" not opened", nil)
	}
	return &videoWriter{writer: writer, width: width, height: height}, nil
}

func (w *videoWriter) Write(frame image.Image) error {
	if frame.Bounds().Dx() != w.width || frame.Bounds().Dy() != w.height {
		return fmt.Errorf("frame %dx%d does not match stream %dx%d",
			frame.Bounds().Dx(), frame.Bounds().Dy(), w.width, w.height)
	}
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()
	return w.writer.Write(mat)
}

func (w *videoWriter) Close() error {
	return w.writer.Close()
}

// VideoFile reads frames from a video on disk. It implements
// analyzer.FrameSource.
type VideoFile struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// OpenVideo opens path for sequential reading.
func OpenVideo(path string) (*VideoFile, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidFrame, "opencv", "open video", path, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, services.Wrap(services.ErrInvalidFrame, "opencv", "open video", path+" not readable", nil)
	}
	return &VideoFile{capture: capture, frame: gocv.NewMat()}, nil
}

// Next returns the next decoded frame or io.EOF.
func (v *VideoFile) Next() (image.Image, error) {
	if ok := v.capture.Read(&v.frame); !ok || v.frame.Empty() {
		return nil, io.EOF
	}
	img, err := v.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Close releases the capture.
func (v *VideoFile) Close() error {
	_ = v.frame.Close()
	return v.capture.Close()
}
