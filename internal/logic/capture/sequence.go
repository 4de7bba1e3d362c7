package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cjeanneret/pimaton/internal/debug"
	"github.com/cjeanneret/pimaton/internal/hw/camera"
)

// TimestampLayout is used in every generated filename.
const TimestampLayout = "2006-01-02T15:04:05"

// Sequence drives the camera through one burst of pictures.
type Sequence struct {
	camera camera.Camera
	params Params
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// Params defines a capture burst.
type Params struct {
	Count        int           // pictures per burst
	Prefix       string        // picture_prefix_name
	WarmUp       time.Duration // preview delay before the first picture
	BetweenShots time.Duration // delay before each picture
}

// NewSequence applies the camera settings once and returns a ready sequence.
func NewSequence(c camera.Camera, settings camera.Settings, p Params) (*Sequence, error) {
	debug.Step(1, "Configuring camera")
	if err := c.Configure(settings); err != nil {
		return nil, asCameraError("configure", "", err)
	}
	return &Sequence{
		camera: c,
		params: p,
		now:    time.Now,
		sleep:  Sleep,
	}, nil
}

// SetClock replaces the time source used for filenames.
func (s *Sequence) SetClock(now func() time.Time) {
	s.now = now
}

// SetSleeper replaces the delay function (tests skip real waits).
func (s *Sequence) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}

// Filename builds the name of the index-th picture (1-based) of a session.
func (s *Sequence) Filename(key string, index int) string {
	return fmt.Sprintf("%s_%s_%02d_%s.jpg", s.params.Prefix, key, index, s.now().Format(TimestampLayout))
}

// TakePictures runs the preview, waits for the warm-up, then captures
// Count pictures into dir. It returns the bare filenames in shot order.
func (s *Sequence) TakePictures(ctx context.Context, key, dir string) ([]string, error) {
	debug.Section("Taking pictures")

	if err := s.camera.StartPreview(); err != nil {
		return nil, asCameraError("preview", "", err)
	}
	taken, err := s.burst(ctx, key, dir)
	if stopErr := s.camera.StopPreview(); stopErr != nil && err == nil {
		err = asCameraError("preview", "", stopErr)
	}
	if err != nil {
		return nil, err
	}

	debug.Verbose("The following pictures were taken: %v", taken)
	return taken, nil
}

func (s *Sequence) burst(ctx context.Context, key, dir string) ([]string, error) {
	debug.Live("Warming up for %v", s.params.WarmUp)
	if err := s.sleep(ctx, s.params.WarmUp); err != nil {
		return nil, err
	}

	taken := make([]string, 0, s.params.Count)
	for i := 1; i <= s.params.Count; i++ {
		filename := s.Filename(key, i)

		if err := s.sleep(ctx, s.params.BetweenShots); err != nil {
			return nil, err
		}

		path := filepath.Join(dir, filename)
		debug.Verbose("Capturing picture %d in %s", i, dir)
		if err := s.camera.Capture(ctx, path); err != nil {
			return nil, asCameraError("capture", path, err)
		}
		taken = append(taken, filename)
		debug.Shot(i, s.params.Count, filename)
	}
	return taken, nil
}

// asCameraError keeps an existing *camera.Error and wraps anything else.
func asCameraError(op, path string, err error) error {
	if _, ok := err.(*camera.Error); ok {
		return err
	}
	return &camera.Error{Op: op, Path: path, Err: err}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
