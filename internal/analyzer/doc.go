// Package analyzer turns frames into emotion summaries.
//
// Analyzer runs face detection and per-face classification on a single image
// and builds an emotion.FrameSummary. The classification model is loaded
// lazily, exactly once, and inference is serialized at the Analyzer boundary.
// Combine folds a batch of frame summaries into one emotion.BatchSummary, and
// AnalyzeVideo samples frames from a FrameSource before combining them.
//
// Detection, classification, and video decoding are consumed through small
// interfaces; production bindings live in internal/vision/opencv.
package analyzer
