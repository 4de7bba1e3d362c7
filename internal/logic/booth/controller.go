// Package booth runs the photo booth: wait for a trigger, take a burst of
// pictures, compose them into one printable image, print it, sync the
// output and start over.
package booth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/pimaton/internal/config"
	"github.com/cjeanneret/pimaton/internal/debug"
	"github.com/cjeanneret/pimaton/internal/hw/camera"
	"github.com/cjeanneret/pimaton/internal/hw/gpio"
	"github.com/cjeanneret/pimaton/internal/hw/input"
	"github.com/cjeanneret/pimaton/internal/logic/capture"
	"github.com/cjeanneret/pimaton/internal/logic/compose"
)

// TimestampLayout formats the timestamp of final picture names.
const TimestampLayout = capture.TimestampLayout

// Placeholders substituted in path and content templates.
const (
	placeholderKey      = "%%uuid%%"
	placeholderHostname = "%%hostname%%"
	placeholderDate     = "%%date%%"
)

// Shooter takes the pictures of one session into dir and returns their
// file names.
type Shooter interface {
	TakePictures(ctx context.Context, key, dir string) ([]string, error)
}

// Renderer composes pictures into the final image.
type Renderer interface {
	Render(photos []string, output string, opts compose.Options) error
}

type Printer interface {
	Print(ctx context.Context, path string) error
}

type Syncer interface {
	Sync(ctx context.Context) error
}

// Deps are the collaborators of a Controller. Printer and Syncer may be
// nil when the matching feature is disabled. GPIO may be nil when no
// flash is configured.
type Deps struct {
	Shooter  Shooter
	Renderer Renderer
	Printer  Printer
	Syncer   Syncer
	Input    input.Source
	GPIO     gpio.Driver
}

// Session is the record of one completed iteration.
type Session struct {
	Key      string    `json:"key"`
	Pictures []string  `json:"pictures"`
	Output   string    `json:"output"`
	At       time.Time `json:"at"`
}

// SessionID identifies one session. Every path and name of the session
// derives from it, so a session crossing midnight stays in one directory.
type SessionID struct {
	Key   string
	Start time.Time
}

// Controller sequences the booth components. Its configuration is fixed
// for its lifetime.
type Controller struct {
	cfg  *config.Config
	deps Deps

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	hostname func() (string, error)

	mu       sync.RWMutex
	state    State
	last     *Session
	observer func(State)
}

// New validates deps against cfg and prepares the flash pins.
func New(cfg *config.Config, deps Deps) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("booth: nil config")
	}
	if deps.Shooter == nil || deps.Renderer == nil || deps.Input == nil {
		return nil, errors.New("booth: shooter, renderer and input are required")
	}
	if cfg.PrintEnabled() && deps.Printer == nil {
		return nil, errors.New("booth: printing enabled without a printer")
	}
	if cfg.SyncEnabled() && deps.Syncer == nil {
		return nil, errors.New("booth: sync enabled without a syncer")
	}

	c := &Controller{
		cfg:      cfg,
		deps:     deps,
		now:      time.Now,
		sleep:    capture.Sleep,
		hostname: os.Hostname,
	}

	if cfg.FlashConfigured() {
		if deps.GPIO == nil {
			return nil, errors.New("booth: flash configured without a GPIO driver")
		}
		for _, pin := range cfg.FlashPins() {
			if err := deps.GPIO.SetupPin(pin, gpio.Output); err != nil {
				return nil, &camera.Error{Op: "flash", Err: fmt.Errorf("setup pin %d: %w", pin, err)}
			}
		}
		debug.Verbose("Flash on GPIO %v", cfg.FlashPins())
	} else if cfg.Picamera.Flash {
		debug.Warn("Flash requested but no GPIO.flash_pins declared, flash disabled")
	}
	return c, nil
}

// SetClock replaces the clock used for session keys and file names.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// SetSleeper replaces the wait used between polls and loops.
func (c *Controller) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) {
	c.sleep = sleep
}

// SetHostname replaces the hostname lookup used for %%hostname%%.
func (c *Controller) SetHostname(hostname func() (string, error)) {
	c.hostname = hostname
}

// OnStateChange registers fn to be called on every state transition.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.observer = fn
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastSession returns the most recent successful session.
func (c *Controller) LastSession() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Session{}, false
	}
	return *c.last, true
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	fn := c.observer
	c.mu.Unlock()

	debug.State(s.String())
	if fn != nil {
		fn(s)
	}
}

// SessionKey returns the key of a session started now.
func (c *Controller) SessionKey() string {
	return c.NewSessionID().Key
}

// NewSessionID reads the clock once and returns the identity of a session
// started now.
func (c *Controller) NewSessionID() SessionID {
	start := c.now()
	return SessionID{Key: strconv.FormatInt(start.Unix(), 10), Start: start}
}

// Expand substitutes the session key, hostname and date in tpl. The date
// is the session start, not the current time.
func (c *Controller) Expand(tpl string, id SessionID) string {
	if !strings.Contains(tpl, "%%") {
		return tpl
	}
	out := strings.ReplaceAll(tpl, placeholderKey, id.Key)
	if strings.Contains(out, placeholderHostname) {
		host, err := c.hostname()
		if err != nil {
			debug.Warn("Cannot resolve hostname: %v", err)
			host = "pimaton"
		}
		out = strings.ReplaceAll(out, placeholderHostname, host)
	}
	return strings.ReplaceAll(out, placeholderDate, id.Start.Format("2006-01-02"))
}

// PhotoDir returns the directory holding the pictures of session id.
func (c *Controller) PhotoDir(id SessionID) string {
	return c.Expand(c.cfg.Picamera.PhotoDirectory, id)
}

// OutputDir returns the directory holding the final picture of session id.
func (c *Controller) OutputDir(id SessionID) string {
	return c.Expand(c.cfg.Image.PrintPic.OutputDir, id)
}

// FinalFilename returns <prefix>_<key>_<timestamp>.jpg.
func (c *Controller) FinalFilename(id SessionID) string {
	prefix := c.Expand(c.cfg.Image.PrintPic.GeneratedPrefixName, id)
	return fmt.Sprintf("%s_%s_%s.jpg", prefix, id.Key, id.Start.Format(TimestampLayout))
}

// EnsureDir creates path and its parents if needed.
func (c *Controller) EnsureDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return &DirError{Path: path, Err: errors.New("not a directory")}
	case !errors.Is(err, os.ErrNotExist):
		return &DirError{Path: path, Err: err}
	}
	debug.Verbose("Creating directory %s", path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &DirError{Path: path, Err: err}
	}
	return nil
}

// ToggleFlash drives every flash pin. It does nothing unless the flash is
// requested and pins are declared.
func (c *Controller) ToggleFlash(on bool) error {
	if !c.cfg.FlashConfigured() {
		return nil
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	for _, pin := range c.cfg.FlashPins() {
		if err := c.deps.GPIO.WritePin(pin, level); err != nil {
			return &camera.Error{Op: "flash", Err: fmt.Errorf("pin %d: %w", pin, err)}
		}
	}
	return nil
}

// TakePictures runs the capture burst of session id and returns the
// picture file names. The flash is switched off before returning.
func (c *Controller) TakePictures(ctx context.Context, id SessionID) ([]string, error) {
	dir := c.PhotoDir(id)
	if err := c.EnsureDir(dir); err != nil {
		return nil, err
	}

	if err := c.ToggleFlash(true); err != nil {
		_ = c.ToggleFlash(false)
		return nil, err
	}
	pictures, err := c.deps.Shooter.TakePictures(ctx, id.Key, dir)
	flashErr := c.ToggleFlash(false)
	if err != nil {
		return nil, err
	}
	if flashErr != nil {
		return nil, flashErr
	}

	want := c.cfg.Picamera.NumberOfPicturesToTake
	if len(pictures) != want {
		return nil, &CountError{Got: len(pictures), Want: want}
	}
	return pictures, nil
}

// GeneratePicture composes pictures into the final image and returns its
// path. Relative picture names are resolved against the photo directory.
func (c *Controller) GeneratePicture(pictures []string, id SessionID) (string, error) {
	photoDir := c.PhotoDir(id)
	paths := make([]string, len(pictures))
	for i, p := range pictures {
		if filepath.IsAbs(p) {
			paths[i] = p
		} else {
			paths[i] = filepath.Join(photoDir, p)
		}
	}

	outDir := c.OutputDir(id)
	if err := c.EnsureDir(outDir); err != nil {
		return "", err
	}
	output := filepath.Join(outDir, c.FinalFilename(id))

	pp := c.cfg.Image.PrintPic
	opts := compose.Options{
		Layout: compose.Layout{
			Width:      pp.Width,
			Height:     pp.Height,
			Columns:    pp.Columns,
			Rows:       pp.Rows,
			Margin:     pp.Margin,
			Background: pp.Background,
			Template:   c.Expand(pp.Template, id),
			Quality:    pp.Quality,
		},
		Key: id.Key,
	}
	if pp.QRCode.Enabled {
		qr, err := compose.QRCode(c.Expand(pp.QRCode.Content, id), pp.QRCode.Size)
		if err != nil {
			return "", err
		}
		opts.QR = qr
	}

	if err := c.deps.Renderer.Render(paths, output, opts); err != nil {
		var imgErr *compose.Error
		if errors.As(err, &imgErr) {
			return "", err
		}
		return "", &compose.Error{Op: "render", Path: output, Err: err}
	}
	return output, nil
}

// PrintPicture sends path to the printer when printing is enabled.
func (c *Controller) PrintPicture(ctx context.Context, path string) error {
	if !c.cfg.PrintEnabled() {
		debug.Verbose("Printing disabled, skipping %s", path)
		return nil
	}
	return c.deps.Printer.Print(ctx, path)
}

// SyncPictures runs the sync command when sync is enabled.
func (c *Controller) SyncPictures(ctx context.Context) error {
	if !c.cfg.SyncEnabled() {
		debug.Verbose("Sync disabled")
		return nil
	}
	return c.deps.Syncer.Sync(ctx)
}

// RunSession performs one full iteration after a trigger.
func (c *Controller) RunSession(ctx context.Context) (Session, error) {
	id := c.NewSessionID()
	debug.Session(id.Key, c.cfg.Picamera.NumberOfPicturesToTake)

	c.setState(Capturing)
	pictures, err := c.TakePictures(ctx, id)
	if err != nil {
		return Session{}, err
	}

	c.setState(Composing)
	output, err := c.GeneratePicture(pictures, id)
	if err != nil {
		return Session{}, err
	}

	if c.cfg.PrintEnabled() {
		c.setState(Printing)
		if err := c.PrintPicture(ctx, output); err != nil {
			return Session{}, err
		}
	}
	if c.cfg.SyncEnabled() {
		c.setState(Syncing)
		if err := c.SyncPictures(ctx); err != nil {
			return Session{}, err
		}
	}

	s := Session{Key: id.Key, Output: output, At: c.now()}
	photoDir := c.PhotoDir(id)
	for _, p := range pictures {
		if !filepath.IsAbs(p) {
			p = filepath.Join(photoDir, p)
		}
		s.Pictures = append(s.Pictures, p)
	}
	c.mu.Lock()
	c.last = &s
	c.mu.Unlock()

	debug.Summary("Session " + id.Key + " complete")
	debug.Value("Final picture", output)
	return s, nil
}

// Run loops over sessions until ctx is cancelled or a session fails. In
// single-loop mode it returns after the first session.
func (c *Controller) Run(ctx context.Context) error {
	defer c.setState(Idle)
	for {
		c.setState(WaitTrigger)
		debug.Info("Waiting for a trigger (%s)", c.cfg.Input.Type)
		if err := c.waitTrigger(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if _, err := c.RunSession(ctx); err != nil {
			return err
		}
		if c.cfg.Pimaton.SingleLoop {
			return nil
		}

		c.setState(Sleeping)
		if err := c.sleep(ctx, c.cfg.TimeBetweenLoop()); err != nil {
			return nil
		}
	}
}

func (c *Controller) waitTrigger(ctx context.Context) error {
	interval := c.cfg.PollInterval()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := c.deps.Input.Triggered()
		if err != nil {
			return err
		}
		if ok {
			debug.Live("Triggered")
			return nil
		}
		if err := c.sleep(ctx, interval); err != nil {
			return err
		}
	}
}
