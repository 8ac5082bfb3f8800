// Package imaging provides the pixel primitives used by frame analysis and
// snapshot persistence: decoding uploads, grayscale conversion, cropping,
// resizing, square thumbnails, and detection annotation.
//
// All helpers return freshly allocated images and never alias their input.
package imaging
