package camera

import (
	"context"
	"fmt"
	"image/color"

	"github.com/cjeanneret/pimaton/internal/debug"
	"github.com/disintegration/imaging"
)

// palette cycles so consecutive mock shots are distinguishable on the print.
var palette = []color.NRGBA{
	{R: 0xe6, G: 0x39, B: 0x46, A: 0xff},
	{R: 0x45, G: 0x7b, B: 0x9d, A: 0xff},
	{R: 0x2a, G: 0x9d, B: 0x8f, A: 0xff},
	{R: 0xf4, G: 0xa2, B: 0x61, A: 0xff},
}

// MockCamera writes solid-colour JPEGs instead of driving hardware.
// Used for development on PC, together with the mock GPIO driver.
type MockCamera struct {
	width, height int
	shots         int
}

func NewMockCamera() *MockCamera {
	debug.Info("Using MOCK camera (development mode)")
	return &MockCamera{width: 640, height: 480}
}

func (m *MockCamera) Configure(s Settings) error {
	if s.Width > 0 && s.Height > 0 {
		m.width, m.height = s.Width, s.Height
	}
	debug.PrintStruct("Mock camera settings", s)
	return nil
}

func (m *MockCamera) StartPreview() error { return nil }

func (m *MockCamera) StopPreview() error { return nil }

func (m *MockCamera) Capture(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "capture", Path: path, Err: err}
	}
	img := imaging.New(m.width, m.height, palette[m.shots%len(palette)])
	m.shots++
	if err := imaging.Save(img, path); err != nil {
		return &Error{Op: "capture", Path: path, Err: fmt.Errorf("write mock picture: %w", err)}
	}
	return nil
}

func (m *MockCamera) Close() error { return nil }
