// Package opencv binds the analyzer and live session interfaces to OpenCV via
// gocv: a Haar cascade face detector, an ONNX emotion classifier run through
// the DNN module, and file-backed video readers and writers.
//
// Building without OpenCV is possible with the nogocv tag, in which case every
// constructor reports the backend as unavailable.
package opencv
