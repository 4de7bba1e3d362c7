package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Input types accepted in input.type.
const (
	InputKeyboard = "keyboard"
	InputGPIO     = "GPIO"
	InputWeb      = "web"
	InputAlways   = "always"
)

// Camera types accepted in picamera.camera.
const (
	CameraRPiCam = "rpicam"
	CameraMock   = "mock"
)

// requiredGroups are the top-level keys every config file must declare.
var requiredGroups = []string{"picamera", "image", "print", "input", "pimaton"}

// defaultMargin applies only when image.print_pic.margin is absent; an
// explicit 0 gives a borderless layout.
const defaultMargin = 30

// envRef matches ${NAME}. Any other use of $ is kept as written.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ResolutionConfig is the capture resolution in pixels.
type ResolutionConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// CameraSettings mirrors the classic picamera property set.
// Zero values leave the camera default in place.
type CameraSettings struct {
	Resolution           ResolutionConfig `yaml:"resolution"`
	Framerate            float64          `yaml:"framerate"`
	Sharpness            int              `yaml:"sharpness"`  // -100..100
	Contrast             int              `yaml:"contrast"`   // -100..100
	Brightness           int              `yaml:"brightness"` // 0..100, 50 = neutral
	Saturation           int              `yaml:"saturation"` // -100..100
	ISO                  int              `yaml:"iso"`        // 0 = auto
	VideoStabilization   bool             `yaml:"video_stabilization"`
	ExposureCompensation int              `yaml:"exposure_compensation"` // -25..25
	ExposureMode         string           `yaml:"exposure_mode"`
	MeterMode            string           `yaml:"meter_mode"`
	AWBMode              string           `yaml:"awb_mode"`
	Rotation             int              `yaml:"rotation"` // 0, 90, 180, 270
	HFlip                bool             `yaml:"hflip"`
	VFlip                bool             `yaml:"vflip"`
}

// PicameraConfig describes the camera and the capture burst.
type PicameraConfig struct {
	Camera                 string         `yaml:"camera"`          // "rpicam" or "mock"
	Binary                 string         `yaml:"binary"`          // optional override of rpicam-still
	PhotoDirectory         string         `yaml:"photo_directory"` // supports %%uuid%%
	PicturePrefixName      string         `yaml:"picture_prefix_name"`
	NumberOfPicturesToTake int            `yaml:"number_of_pictures_to_take"`
	TimeBeforeFirstPicture float64        `yaml:"time_before_first_picture"` // seconds
	TimeBetweenPictures    float64        `yaml:"time_between_pictures"`     // seconds
	Flash                  bool           `yaml:"flash"`
	Settings               CameraSettings `yaml:"settings"`
}

// QRCodeConfig controls the optional QR overlay.
type QRCodeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Content string `yaml:"content"` // supports %%uuid%%, %%hostname%%, %%date%%
	Size    int    `yaml:"size"`    // pixels
}

// PrintPicConfig describes the composed, printable picture.
type PrintPicConfig struct {
	OutputDir           string       `yaml:"output_dir"`            // supports %%uuid%%
	GeneratedPrefixName string       `yaml:"generated_prefix_name"` // supports %%hostname%%, %%date%%
	Width               int          `yaml:"width"`
	Height              int          `yaml:"height"`
	Columns             int          `yaml:"columns"` // 0 = auto
	Rows                int          `yaml:"rows"`    // 0 = auto
	Margin              int          `yaml:"margin"`
	Background          string       `yaml:"background"` // hex colour
	Template            string       `yaml:"template"`   // optional background image
	Quality             int          `yaml:"quality"`    // JPEG quality 1-100
	QRCode              QRCodeConfig `yaml:"qrcode"`
}

// ImageConfig groups the image composition settings.
type ImageConfig struct {
	PrintPic PrintPicConfig `yaml:"print_pic"`
}

// PrintConfig controls the print dispatcher.
type PrintConfig struct {
	Enabled bool     `yaml:"enabled"`
	Printer string   `yaml:"printer"` // CUPS destination, empty = system default
	Copies  int      `yaml:"copies"`
	Options []string `yaml:"options"` // passed as -o values
}

// InputConfig selects the trigger source.
type InputConfig struct {
	Type           string `yaml:"type"`     // keyboard, GPIO, web, always
	Pin            int    `yaml:"gpio_pin"` // BCM pin for the GPIO button
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	DebounceMs     int    `yaml:"debounce_ms"`
}

// PimatonConfig holds the main loop settings.
type PimatonConfig struct {
	TimeBetweenLoop float64 `yaml:"time_between_loop"` // seconds
	SingleLoop      bool    `yaml:"single_loop"`
	DebugLevel      int     `yaml:"debug_level"` // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO        bool    `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// SyncConfig controls the sync uploader.
type SyncConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Command     string   `yaml:"command"` // default rsync
	Options     []string `yaml:"options"`
	Source      string   `yaml:"source"`
	Destination string   `yaml:"destination"`
}

// GPIOConfig lists the flash pins (BCM numbering).
type GPIOConfig struct {
	FlashPins []int `yaml:"flash_pins"`
}

// WebConfig controls the optional status and trigger panel.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	MDNS    bool   `yaml:"mdns"`
	Name    string `yaml:"name"` // mDNS instance name
}

// Config aggregates all application configuration.
type Config struct {
	Picamera PicameraConfig `yaml:"picamera"`
	Image    ImageConfig    `yaml:"image"`
	Print    PrintConfig    `yaml:"print"`
	Input    InputConfig    `yaml:"input"`
	Pimaton  PimatonConfig  `yaml:"pimaton"`
	Sync     *SyncConfig    `yaml:"sync,omitempty"` // optional
	GPIO     *GPIOConfig    `yaml:"GPIO,omitempty"` // optional
	Web      *WebConfig     `yaml:"web,omitempty"`  // optional
}

// Load reads a YAML file and returns the configuration.
// ${VAR} references are expanded from the environment before parsing;
// an unset variable expands to the empty string.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	expanded := []byte(expandEnv(string(data)))

	var groups map[string]yaml.Node
	if err := yaml.Unmarshal(expanded, &groups); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	var missing []string
	for _, g := range requiredGroups {
		if _, ok := groups[g]; !ok {
			missing = append(missing, g)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required config groups: %s", strings.Join(missing, ", "))
	}

	// Keys absent from the document keep these values.
	cfg := Config{Image: ImageConfig{PrintPic: PrintPicConfig{Margin: defaultMargin}}}
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

func (c *Config) applyDefaults() error {
	p := &c.Picamera
	if p.Camera == "" {
		p.Camera = CameraRPiCam
	}
	if p.Camera != CameraRPiCam && p.Camera != CameraMock {
		return fmt.Errorf("unsupported picamera.camera: %s", p.Camera)
	}
	if p.NumberOfPicturesToTake <= 0 {
		return fmt.Errorf("picamera.number_of_pictures_to_take must be > 0, got %d", p.NumberOfPicturesToTake)
	}
	if p.PhotoDirectory == "" {
		return fmt.Errorf("picamera.photo_directory is required")
	}
	if p.PicturePrefixName == "" {
		p.PicturePrefixName = "pimaton"
	}
	if p.TimeBeforeFirstPicture < 0 || p.TimeBetweenPictures < 0 {
		return fmt.Errorf("picamera timings must be >= 0")
	}
	if p.Settings.Resolution.Width <= 0 || p.Settings.Resolution.Height <= 0 {
		p.Settings.Resolution = ResolutionConfig{Width: 1920, Height: 1080}
	}
	switch p.Settings.Rotation {
	case 0, 180:
	case 90, 270:
		if p.Camera == CameraRPiCam {
			return fmt.Errorf("picamera.settings.rotation %d not supported by rpicam-still (0 or 180)", p.Settings.Rotation)
		}
	default:
		return fmt.Errorf("picamera.settings.rotation must be 0, 90, 180 or 270, got %d", p.Settings.Rotation)
	}

	pp := &c.Image.PrintPic
	if pp.OutputDir == "" {
		return fmt.Errorf("image.print_pic.output_dir is required")
	}
	if pp.GeneratedPrefixName == "" {
		pp.GeneratedPrefixName = "pimaton"
	}
	if pp.Width <= 0 || pp.Height <= 0 {
		pp.Width, pp.Height = 1800, 1200 // 6x4 inch at 300 dpi
	}
	if pp.Margin < 0 {
		return fmt.Errorf("image.print_pic.margin must be >= 0, got %d", pp.Margin)
	}
	if pp.Columns < 0 || pp.Rows < 0 {
		return fmt.Errorf("image.print_pic columns/rows must be >= 0")
	}
	if pp.Columns > 0 && pp.Rows > 0 && pp.Columns*pp.Rows < p.NumberOfPicturesToTake {
		return fmt.Errorf("image.print_pic layout %dx%d cannot hold %d pictures",
			pp.Columns, pp.Rows, p.NumberOfPicturesToTake)
	}
	if pp.Background == "" {
		pp.Background = "#ffffff"
	}
	if pp.Quality <= 0 || pp.Quality > 100 {
		pp.Quality = 90
	}
	if pp.QRCode.Enabled {
		if pp.QRCode.Content == "" {
			return fmt.Errorf("image.print_pic.qrcode.content is required when qrcode is enabled")
		}
		if pp.QRCode.Size <= 0 {
			pp.QRCode.Size = 256
		}
	}

	if c.Print.Enabled && c.Print.Copies <= 0 {
		c.Print.Copies = 1
	}

	switch c.Input.Type {
	case InputKeyboard, InputWeb, InputAlways:
	case InputGPIO:
		if c.Input.Pin <= 0 {
			return fmt.Errorf("input.gpio_pin is required for GPIO input")
		}
	default:
		return fmt.Errorf("not recognized input type %q", c.Input.Type)
	}
	if c.Input.PollIntervalMs <= 0 {
		c.Input.PollIntervalMs = 50
	}
	if c.Input.DebounceMs <= 0 {
		c.Input.DebounceMs = 200
	}

	if c.Pimaton.TimeBetweenLoop < 0 {
		return fmt.Errorf("pimaton.time_between_loop must be >= 0")
	}

	if c.Sync != nil && c.Sync.Enabled {
		if c.Sync.Command == "" {
			c.Sync.Command = "rsync"
		}
		if c.Sync.Source == "" || c.Sync.Destination == "" {
			return fmt.Errorf("sync.source and sync.destination are required when sync is enabled")
		}
	}

	if c.Web != nil {
		if c.Web.Port == 0 {
			c.Web.Port = 8080
		}
		if c.Web.Port < 0 || c.Web.Port > 65535 {
			return fmt.Errorf("web.port must be 1-65535, got %d", c.Web.Port)
		}
		if c.Web.Name == "" {
			c.Web.Name = "Pimaton"
		}
	}
	return nil
}

// FlashConfigured reports whether the flash is both requested and wired.
func (c *Config) FlashConfigured() bool {
	return c.Picamera.Flash && c.GPIO != nil && len(c.GPIO.FlashPins) > 0
}

// FlashPins returns the declared flash pins, or nil.
func (c *Config) FlashPins() []int {
	if c.GPIO == nil {
		return nil
	}
	return c.GPIO.FlashPins
}

// PrintEnabled reports whether composed pictures should be printed.
func (c *Config) PrintEnabled() bool {
	return c.Print.Enabled
}

// SyncEnabled reports whether the sync group is present and enabled.
func (c *Config) SyncEnabled() bool {
	return c.Sync != nil && c.Sync.Enabled
}

// WebEnabled reports whether the web panel should be started.
func (c *Config) WebEnabled() bool {
	return c.Web != nil && c.Web.Enabled
}

// TimeBeforeFirstPicture returns the warm-up delay before the first shot.
func (c *Config) TimeBeforeFirstPicture() time.Duration {
	return seconds(c.Picamera.TimeBeforeFirstPicture)
}

// TimeBetweenPictures returns the delay before each shot.
func (c *Config) TimeBetweenPictures() time.Duration {
	return seconds(c.Picamera.TimeBetweenPictures)
}

// TimeBetweenLoop returns the pause after a session.
func (c *Config) TimeBetweenLoop() time.Duration {
	return seconds(c.Pimaton.TimeBetweenLoop)
}

// PollInterval returns the trigger polling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Input.PollIntervalMs) * time.Millisecond
}

// Debounce returns the GPIO button debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Input.DebounceMs) * time.Millisecond
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
