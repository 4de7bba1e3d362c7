package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/cjeanneret/pimaton/internal/debug"
)

// Binaries tried, newest name first.
var rpicamBinaries = []string{"rpicam-still", "libcamera-still"}

// previewHoldMs is how long rpicam-still shows its preview before a shot
// when the preview is running.
const previewHoldMs = 1000

var exposureModes = map[string]string{
	"":             "",
	"auto":         "normal",
	"normal":       "normal",
	"sports":       "sport",
	"sport":        "sport",
	"night":        "long",
	"nightpreview": "long",
	"verylong":     "long",
	"long":         "long",
	"short":        "short",
}

var meterModes = map[string]string{
	"":        "",
	"average": "average",
	"spot":    "spot",
	"backlit": "centre",
	"centre":  "centre",
	"matrix":  "average",
}

var awbModes = map[string]string{
	"":             "",
	"auto":         "auto",
	"sunlight":     "daylight",
	"daylight":     "daylight",
	"cloudy":       "cloudy",
	"shade":        "cloudy",
	"tungsten":     "tungsten",
	"fluorescent":  "fluorescent",
	"incandescent": "incandescent",
	"flash":        "daylight",
	"horizon":      "incandescent",
	"indoor":       "indoor",
}

// runFunc executes a command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// RPiCam drives the Raspberry Pi camera module through rpicam-still
// (libcamera-still on older systems).
type RPiCam struct {
	binary  string
	args    []string // settings translated to CLI flags
	preview bool
	run     runFunc
}

// NewRPiCam locates the capture binary. An empty binary tries rpicam-still
// then libcamera-still on PATH.
func NewRPiCam(binary string) (*RPiCam, error) {
	candidates := rpicamBinaries
	if binary != "" {
		candidates = []string{binary}
	}
	for _, name := range candidates {
		path, err := exec.LookPath(name)
		if err == nil {
			debug.Info("Using camera binary %s", path)
			return &RPiCam{binary: path, run: execRun}, nil
		}
	}
	return nil, &Error{
		Op:  "open",
		Err: fmt.Errorf("none of %v found on PATH (install rpicam-apps)", candidates),
	}
}

// Configure validates the settings and translates them to rpicam flags.
func (c *RPiCam) Configure(s Settings) error {
	args, err := settingsArgs(s)
	if err != nil {
		return &Error{Op: "configure", Err: err}
	}
	c.args = args
	debug.Command(c.binary, args)
	return nil
}

func settingsArgs(s Settings) ([]string, error) {
	var args []string
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	if s.Width > 0 && s.Height > 0 {
		args = append(args, "--width", strconv.Itoa(s.Width), "--height", strconv.Itoa(s.Height))
	}
	if s.Framerate > 0 {
		args = append(args, "--framerate", f(s.Framerate))
	}
	if s.Sharpness < -100 || s.Sharpness > 100 {
		return nil, fmt.Errorf("sharpness must be between -100 and 100, got %d", s.Sharpness)
	}
	if s.Sharpness != 0 {
		args = append(args, "--sharpness", f(1+float64(s.Sharpness)/100))
	}
	if s.Contrast < -100 || s.Contrast > 100 {
		return nil, fmt.Errorf("contrast must be between -100 and 100, got %d", s.Contrast)
	}
	if s.Contrast != 0 {
		args = append(args, "--contrast", f(1+float64(s.Contrast)/100))
	}
	if s.Brightness < 0 || s.Brightness > 100 {
		return nil, fmt.Errorf("brightness must be between 0 and 100, got %d", s.Brightness)
	}
	if s.Brightness != 0 && s.Brightness != 50 {
		args = append(args, "--brightness", f(float64(s.Brightness-50)/50))
	}
	if s.Saturation < -100 || s.Saturation > 100 {
		return nil, fmt.Errorf("saturation must be between -100 and 100, got %d", s.Saturation)
	}
	if s.Saturation != 0 {
		args = append(args, "--saturation", f(1+float64(s.Saturation)/100))
	}
	if s.ISO < 0 || s.ISO > 1600 {
		return nil, fmt.Errorf("iso must be between 0 and 1600, got %d", s.ISO)
	}
	if s.ISO > 0 {
		args = append(args, "--gain", f(float64(s.ISO)/100))
	}
	if s.ExposureCompensation < -25 || s.ExposureCompensation > 25 {
		return nil, fmt.Errorf("exposure_compensation must be between -25 and 25, got %d", s.ExposureCompensation)
	}
	if s.ExposureCompensation != 0 {
		args = append(args, "--ev", f(float64(s.ExposureCompensation)/6))
	}

	mode, ok := exposureModes[s.ExposureMode]
	if !ok {
		return nil, fmt.Errorf("unsupported exposure_mode %q", s.ExposureMode)
	}
	if mode != "" {
		args = append(args, "--exposure", mode)
	}
	meter, ok := meterModes[s.MeterMode]
	if !ok {
		return nil, fmt.Errorf("unsupported meter_mode %q", s.MeterMode)
	}
	if meter != "" {
		args = append(args, "--metering", meter)
	}
	awb, ok := awbModes[s.AWBMode]
	if !ok {
		return nil, fmt.Errorf("unsupported awb_mode %q", s.AWBMode)
	}
	if awb != "" {
		args = append(args, "--awb", awb)
	}

	switch s.Rotation {
	case 0:
	case 180:
		args = append(args, "--rotation", "180")
	default:
		return nil, fmt.Errorf("rotation %d not supported by rpicam-still (0 or 180)", s.Rotation)
	}
	if s.HFlip {
		args = append(args, "--hflip")
	}
	if s.VFlip {
		args = append(args, "--vflip")
	}
	if s.VideoStabilization {
		debug.Verbose("Camera: video_stabilization has no effect on stills, ignored")
	}
	return args, nil
}

func (c *RPiCam) StartPreview() error {
	debug.Verbose("Camera: preview on")
	c.preview = true
	return nil
}

func (c *RPiCam) StopPreview() error {
	debug.Verbose("Camera: preview off")
	c.preview = false
	return nil
}

// captureArgs builds the full argument list for one shot.
func (c *RPiCam) captureArgs(path string) []string {
	args := append([]string{}, c.args...)
	args = append(args, "--encoding", "jpg")
	if c.preview {
		args = append(args, "--timeout", strconv.Itoa(previewHoldMs))
	} else {
		args = append(args, "--nopreview", "--immediate")
	}
	return append(args, "--output", path)
}

// Capture runs one rpicam-still invocation and checks the file was written.
func (c *RPiCam) Capture(ctx context.Context, path string) error {
	args := c.captureArgs(path)
	debug.Command(c.binary, args)

	out, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return &Error{Op: "capture", Path: path, Err: fmt.Errorf("%s: %w (output: %s)", c.binary, err, out)}
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Error{Op: "capture", Path: path, Err: fmt.Errorf("%s exited cleanly but wrote no file", c.binary)}
		}
		return &Error{Op: "capture", Path: path, Err: err}
	}
	return nil
}

func (c *RPiCam) Close() error {
	return nil
}
