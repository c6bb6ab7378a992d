// Package signdetect sends a captured sign image or clip to a recognition
// endpoint and returns the predicted label.
package signdetect

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// FailureMessage is the alert shown when detection does not produce a result.
const FailureMessage = "Failed to detect sign"

// PermissionMessage is the alert shown when the camera cannot be used.
const PermissionMessage = "Camera permission required"

var (
	ErrCameraPermission = errors.New("camera permission denied")
	// ErrCanceled means the user backed out of capture. It is not a failure.
	ErrCanceled = errors.New("capture canceled")
)

type Kind int

const (
	Image Kind = iota
	Video
)

func (k Kind) String() string {
	if k == Video {
		return "video"
	}
	return "image"
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "image", "":
		return Image, nil
	case "video":
		return Video, nil
	}
	return Image, fmt.Errorf("unknown media kind %q", s)
}

// KindOf guesses the media kind from the file extension.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".m4v", ".webm", ".avi":
		return Video
	}
	return Image
}

type Media struct {
	Path string
	Kind Kind
}

type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Percent renders confidence as a percentage with one decimal.
func (r Result) Percent() string {
	return fmt.Sprintf("%.1f%%", r.Confidence*100)
}

func (r Result) String() string {
	return fmt.Sprintf("Sign: %s\nConfidence: %s", r.Label, r.Percent())
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("detect: %s (status %d)", e.Message, e.StatusCode)
	}
	return "detect: " + e.Message
}

type Detector interface {
	Detect(ctx context.Context, m Media) (Result, error)
}

// Source produces one piece of media per Capture call.
type Source interface {
	RequestPermission() error
	Capture(ctx context.Context) (Media, error)
}
