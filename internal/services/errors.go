package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrNoFaceDetected   = errors.New("no face detected")
	ErrNoDetections     = errors.New("no detections")
	ErrSessionNotFound  = errors.New("session not found")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrStorageFailure   = errors.New("storage failure")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
)

// Kind is the stable, user-visible classification of an error.
type Kind string

const (
	KindInvalidFrame     Kind = "invalid_frame"
	KindNoFaceDetected   Kind = "no_face_detected"
	KindNoDetections     Kind = "no_detections"
	KindSessionNotFound  Kind = "session_not_found"
	KindModelUnavailable Kind = "model_unavailable"
	KindStorageFailure   Kind = "storage_failure"
	KindValidation       Kind = "validation"
	KindConfiguration    Kind = "configuration"
	KindInternal         Kind = "internal"
)

var markerKinds = []struct {
	marker error
	kind   Kind
}{
	{ErrInvalidFrame, KindInvalidFrame},
	{ErrNoFaceDetected, KindNoFaceDetected},
	{ErrNoDetections, KindNoDetections},
	{ErrSessionNotFound, KindSessionNotFound},
	{ErrModelUnavailable, KindModelUnavailable},
	{ErrStorageFailure, KindStorageFailure},
	{ErrValidation, KindValidation},
	{ErrConfiguration, KindConfiguration},
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker. The marker should be one of the exported sentinel
// errors above; nil defaults to ErrStorageFailure.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStorageFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf returns the classification of err. Errors without a known marker map
// to KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	return KindInternal
}

// Retryable reports whether a caller may retry after err, possibly with a
// different input. Model and configuration defects need operator action.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindInvalidFrame, KindNoFaceDetected, KindNoDetections, KindStorageFailure:
		return true
	default:
		return false
	}
}

// Fatal reports whether err indicates a deployment defect that will not clear
// without operator action.
func Fatal(err error) bool {
	switch KindOf(err) {
	case KindModelUnavailable, KindConfiguration:
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
