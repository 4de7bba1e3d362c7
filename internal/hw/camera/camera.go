package camera

import (
	"context"
	"fmt"
)

// Camera is the high-level interface used by the rest of the application.
// It represents an abstract "camera", regardless of how it's controlled
// (rpicam CLI, mock, etc.).
type Camera interface {
	// Configure applies capture settings. It is called once before the first burst.
	Configure(s Settings) error
	// StartPreview and StopPreview bracket a burst of captures.
	StartPreview() error
	StopPreview() error
	// Capture takes a single picture and writes it to path.
	Capture(ctx context.Context, path string) error
	Close() error
}

// Settings are the picamera-style capture settings. Zero values keep the
// camera default.
type Settings struct {
	Width                int
	Height               int
	Framerate            float64
	Sharpness            int // -100..100
	Contrast             int // -100..100
	Brightness           int // 0..100, 50 = neutral
	Saturation           int // -100..100
	ISO                  int
	VideoStabilization   bool
	ExposureCompensation int // -25..25, sixths of a stop
	ExposureMode         string
	MeterMode            string
	AWBMode              string
	Rotation             int
	HFlip                bool
	VFlip                bool
}

// Error is returned for any failure while configuring or driving the camera.
// The hardware cause is preserved and reachable through errors.As/Unwrap.
type Error struct {
	// Op is the camera operation that failed (configure, preview, capture).
	Op string
	// Path is the picture being captured, if any.
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("camera %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("camera %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
