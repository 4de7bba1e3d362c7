// Package compose lays out the pictures of a session into a single
// printable image, with an optional QR code overlay.
package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/cjeanneret/pimaton/internal/debug"
)

// Layout describes the printable canvas.
type Layout struct {
	Width      int
	Height     int
	Columns    int // 0 = auto
	Rows       int // 0 = auto
	Margin     int
	Background string // hex colour, e.g. "#ffffff"
	Template   string // optional background image, stretched to the canvas
	Quality    int    // JPEG quality
}

// Options carries the per-session inputs of a render.
type Options struct {
	Layout Layout
	QR     image.Image // optional, overlaid in the bottom-right corner
	Key    string      // session key, for logging
}

// Error is returned when the final picture cannot be produced.
type Error struct {
	// Op is the failing step (layout, open, template, qrcode, save).
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("image %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("image %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrTooManyPictures is returned when the grid cannot hold every picture.
var ErrTooManyPictures = errors.New("more pictures than layout cells")

// Composer renders final pictures. It is stateless.
type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

// Grid returns the columns and rows used for n pictures. Zero values in
// the layout are filled so the grid is as square as possible.
func (l Layout) Grid(n int) (cols, rows int) {
	cols, rows = l.Columns, l.Rows
	switch {
	case cols > 0 && rows > 0:
	case cols > 0:
		rows = int(math.Ceil(float64(n) / float64(cols)))
	case rows > 0:
		cols = int(math.Ceil(float64(n) / float64(rows)))
	default:
		cols = int(math.Ceil(math.Sqrt(float64(n))))
		rows = int(math.Ceil(float64(n) / float64(cols)))
	}
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// Cells returns the rectangle of each of the n pictures, left to right,
// top to bottom. The bottom-right margin is widened to leave room for a
// QR code of qrSize pixels.
func (l Layout) Cells(n, qrSize int) ([]image.Rectangle, error) {
	cols, rows := l.Grid(n)
	if cols*rows < n {
		return nil, fmt.Errorf("%w: %d pictures in a %dx%d grid", ErrTooManyPictures, n, cols, rows)
	}

	bottom := l.Margin
	if qrSize > 0 {
		bottom = l.Margin + qrSize
	}
	cellW := (l.Width - l.Margin*(cols+1)) / cols
	cellH := (l.Height - l.Margin*rows - bottom) / rows
	if cellW <= 0 || cellH <= 0 {
		return nil, fmt.Errorf("canvas %dx%d too small for a %dx%d grid with margin %d",
			l.Width, l.Height, cols, rows, l.Margin)
	}

	cells := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		col, row := i%cols, i/cols
		x := l.Margin + col*(cellW+l.Margin)
		y := l.Margin + row*(cellH+l.Margin)
		cells = append(cells, image.Rect(x, y, x+cellW, y+cellH))
	}
	return cells, nil
}

// Render composes photos into output according to opts.
func (c *Composer) Render(photos []string, output string, opts Options) error {
	l := opts.Layout
	debug.Section("Composing final picture")
	debug.Verbose("Rendering %d pictures to %s (session %s)", len(photos), output, opts.Key)

	qrSize := 0
	if opts.QR != nil {
		qrSize = opts.QR.Bounds().Dx()
	}
	cells, err := l.Cells(len(photos), qrSize)
	if err != nil {
		return &Error{Op: "layout", Err: err}
	}

	canvas, err := background(l)
	if err != nil {
		return err
	}

	for i, path := range photos {
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			return &Error{Op: "open", Path: path, Err: err}
		}
		cell := cells[i]
		thumb := imaging.Fill(img, cell.Dx(), cell.Dy(), imaging.Center, imaging.Lanczos)
		canvas = imaging.Paste(canvas, thumb, cell.Min)
		debug.Trace("Placed %s at %v", filepath.Base(path), cell)
	}

	if opts.QR != nil {
		b := opts.QR.Bounds()
		pos := image.Pt(l.Width-l.Margin-b.Dx(), l.Height-l.Margin-b.Dy())
		canvas = imaging.Overlay(canvas, opts.QR, pos, 1.0)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return &Error{Op: "save", Path: output, Err: err}
	}
	if err := imaging.Save(canvas, output, imaging.JPEGQuality(l.Quality)); err != nil {
		return &Error{Op: "save", Path: output, Err: err}
	}
	debug.Info("Final picture written to %s", output)
	return nil
}

func background(l Layout) (*image.NRGBA, error) {
	if l.Template != "" {
		tpl, err := imaging.Open(l.Template)
		if err != nil {
			return nil, &Error{Op: "template", Path: l.Template, Err: err}
		}
		return imaging.Resize(tpl, l.Width, l.Height, imaging.Lanczos), nil
	}
	bg, err := ParseColor(l.Background)
	if err != nil {
		return nil, &Error{Op: "layout", Err: err}
	}
	return imaging.New(l.Width, l.Height, bg), nil
}

// ParseColor parses a "#rrggbb" or "#rgb" colour.
func ParseColor(hex string) (color.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	return c, nil
}

// QRCode encodes content as a size×size QR image.
func QRCode(content string, size int) (image.Image, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, &Error{Op: "qrcode", Err: err}
	}
	return qr.Image(size), nil
}
