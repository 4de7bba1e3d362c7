package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cjeanneret/pimaton/internal/config"
	"github.com/cjeanneret/pimaton/internal/debug"
	"github.com/cjeanneret/pimaton/internal/hw/camera"
	"github.com/cjeanneret/pimaton/internal/hw/gpio"
	"github.com/cjeanneret/pimaton/internal/hw/input"
	"github.com/cjeanneret/pimaton/internal/hw/printer"
	"github.com/cjeanneret/pimaton/internal/logic/booth"
	"github.com/cjeanneret/pimaton/internal/logic/capture"
	"github.com/cjeanneret/pimaton/internal/logic/compose"
	"github.com/cjeanneret/pimaton/internal/syncer"
	"github.com/cjeanneret/pimaton/internal/web"
)

// app owns the hardware handles opened at startup.
type app struct {
	cfg         *config.Config
	gpio        gpio.Driver
	cam         camera.Camera
	src         input.Source
	ctrl        *booth.Controller
	broadcaster *web.StatusBroadcaster // nil when the web panel is disabled
}

func newApp(cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	if cfg.WebEnabled() {
		a.broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(os.Stdout, web.BroadcastWriter(a.broadcaster))
	}

	debug.Value("Mock GPIO", cfg.Pimaton.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	if a.gpio, err = gpio.NewDriver(cfg.Pimaton.MockGPIO); err != nil {
		return a, fmt.Errorf("init GPIO: %w", err)
	}

	debug.Step(2, "Initializing camera")
	if a.cam, err = newCameraFromConfig(cfg); err != nil {
		return a, err
	}
	debug.Value("Camera type", cfg.Picamera.Camera)
	seq, err := capture.NewSequence(a.cam, cameraSettings(cfg), capture.Params{
		Count:        cfg.Picamera.NumberOfPicturesToTake,
		Prefix:       cfg.Picamera.PicturePrefixName,
		WarmUp:       cfg.TimeBeforeFirstPicture(),
		BetweenShots: cfg.TimeBetweenPictures(),
	})
	if err != nil {
		return a, err
	}

	debug.Step(3, "Initializing input")
	if a.src, err = input.New(cfg.Input, a.gpio, os.Stdin); err != nil {
		return a, err
	}
	debug.Value("Input type", cfg.Input.Type)

	deps := booth.Deps{
		Shooter:  seq,
		Renderer: compose.NewComposer(),
		Input:    a.src,
		GPIO:     a.gpio,
	}
	if cfg.PrintEnabled() {
		deps.Printer = printer.NewDispatcher(printer.Config{
			Printer: cfg.Print.Printer,
			Copies:  cfg.Print.Copies,
			Options: cfg.Print.Options,
		})
		debug.Value("Printer", cfg.Print.Printer)
	}
	if cfg.SyncEnabled() {
		deps.Syncer = syncer.New(syncer.Config{
			Command:     cfg.Sync.Command,
			Options:     cfg.Sync.Options,
			Source:      cfg.Sync.Source,
			Destination: cfg.Sync.Destination,
		})
		debug.Value("Sync destination", cfg.Sync.Destination)
	}

	debug.Step(4, "Initializing controller")
	if a.ctrl, err = booth.New(cfg, deps); err != nil {
		return a, err
	}
	return a, nil
}

// Run starts the web panel when enabled and runs the booth loop.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.broadcaster != nil {
		if err := a.startWeb(ctx); err != nil {
			return err
		}
	}
	return a.ctrl.Run(ctx)
}

func (a *app) startWeb(ctx context.Context) error {
	b := a.broadcaster
	a.ctrl.OnStateChange(func(s booth.State) { b.BroadcastState(s.String()) })

	// Only a web input source can be armed from the panel.
	var trigger web.Trigger
	if w, ok := a.src.(*input.Web); ok {
		trigger = w
	}

	srv, err := web.NewServer(fmt.Sprintf(":%d", a.cfg.Web.Port), b, a.ctrl, trigger)
	if err != nil {
		return err
	}
	go func() {
		if err := srv.Run(ctx); err != nil {
			debug.Warn("Web panel stopped: %v", err)
		}
	}()

	if a.cfg.Web.MDNS {
		shutdown, err := web.Advertise(a.cfg.Web.Name, a.cfg.Web.Port)
		if err != nil {
			debug.Warn("mDNS advertisement failed: %v", err)
			return nil
		}
		go func() {
			<-ctx.Done()
			shutdown()
		}()
	}
	return nil
}

// Close releases the hardware in reverse order of acquisition.
func (a *app) Close() {
	if a.src != nil {
		if err := input.Close(a.src); err != nil {
			debug.Warn("Restoring terminal failed: %v", err)
		}
	}
	if a.cam != nil {
		if err := a.cam.Close(); err != nil {
			debug.Warn("Closing camera failed: %v", err)
		}
	}
	if a.gpio != nil {
		if err := a.gpio.Close(); err != nil {
			debug.Warn("Closing GPIO driver failed: %v", err)
		}
	}
}

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(cfg *config.Config) (camera.Camera, error) {
	switch cfg.Picamera.Camera {
	case config.CameraRPiCam:
		cam, err := camera.NewRPiCam(cfg.Picamera.Binary)
		if err != nil {
			return nil, err
		}
		return cam, nil
	case config.CameraMock:
		return camera.NewMockCamera(), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Picamera.Camera)
	}
}

// cameraSettings maps the picamera configuration block to driver settings.
func cameraSettings(cfg *config.Config) camera.Settings {
	s := cfg.Picamera.Settings
	return camera.Settings{
		Width:                s.Resolution.Width,
		Height:               s.Resolution.Height,
		Framerate:            s.Framerate,
		Sharpness:            s.Sharpness,
		Contrast:             s.Contrast,
		Brightness:           s.Brightness,
		Saturation:           s.Saturation,
		ISO:                  s.ISO,
		VideoStabilization:   s.VideoStabilization,
		ExposureCompensation: s.ExposureCompensation,
		ExposureMode:         s.ExposureMode,
		MeterMode:            s.MeterMode,
		AWBMode:              s.AWBMode,
		Rotation:             s.Rotation,
		HFlip:                s.HFlip,
		VFlip:                s.VFlip,
	}
}
