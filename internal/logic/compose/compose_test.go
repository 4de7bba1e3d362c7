package compose

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func writePhoto(t *testing.T, dir, name string, c color.Color) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(imaging.New(320, 240, c), path); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testLayout() Layout {
	return Layout{
		Width:      600,
		Height:     400,
		Margin:     10,
		Background: "#ffffff",
		Quality:    95,
	}
}

func TestLayout_Grid(t *testing.T) {
	cases := []struct {
		name       string
		cols, rows int
		n          int
		wantC      int
		wantR      int
	}{
		{"auto_1", 0, 0, 1, 1, 1},
		{"auto_3", 0, 0, 3, 2, 2},
		{"auto_4", 0, 0, 4, 2, 2},
		{"auto_5", 0, 0, 5, 3, 2},
		{"fixed_cols", 3, 0, 4, 3, 2},
		{"fixed_rows", 0, 1, 3, 3, 1},
		{"fixed_both", 2, 2, 3, 2, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := Layout{Columns: tc.cols, Rows: tc.rows}
			c, r := l.Grid(tc.n)
			if c != tc.wantC || r != tc.wantR {
				t.Errorf("Grid(%d) = %dx%d, want %dx%d", tc.n, c, r, tc.wantC, tc.wantR)
			}
		})
	}
}

func TestLayout_CellsInsideCanvasAndDisjoint(t *testing.T) {
	l := testLayout()
	cells, err := l.Cells(4, 80)
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if len(cells) != 4 {
		t.Fatalf("got %d cells, want 4", len(cells))
	}
	canvas := image.Rect(0, 0, l.Width, l.Height)
	qr := image.Rect(l.Width-l.Margin-80, l.Height-l.Margin-80, l.Width-l.Margin, l.Height-l.Margin)
	for i, c := range cells {
		if !c.In(canvas) {
			t.Errorf("cell %d %v outside canvas", i, c)
		}
		if c.Overlaps(qr) {
			t.Errorf("cell %d %v overlaps QR area %v", i, c, qr)
		}
		for j := i + 1; j < len(cells); j++ {
			if c.Overlaps(cells[j]) {
				t.Errorf("cells %d and %d overlap", i, j)
			}
		}
	}
}

func TestLayout_CellsTooMany(t *testing.T) {
	l := testLayout()
	l.Columns, l.Rows = 2, 1
	_, err := l.Cells(3, 0)
	if !errors.Is(err, ErrTooManyPictures) {
		t.Errorf("expected ErrTooManyPictures, got %v", err)
	}
}

func TestLayout_CellsCanvasTooSmall(t *testing.T) {
	l := Layout{Width: 20, Height: 20, Margin: 10}
	if _, err := l.Cells(4, 0); err == nil {
		t.Error("expected error for a canvas smaller than its margins")
	}
}

func TestRender_WritesCanvas(t *testing.T) {
	dir := t.TempDir()
	photos := []string{
		writePhoto(t, dir, "a.jpg", color.NRGBA{R: 255, A: 255}),
		writePhoto(t, dir, "b.jpg", color.NRGBA{G: 255, A: 255}),
		writePhoto(t, dir, "c.jpg", color.NRGBA{B: 255, A: 255}),
	}
	out := filepath.Join(dir, "out", "final.jpg")

	if err := NewComposer().Render(photos, out, Options{Layout: testLayout(), Key: "k"}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	img, err := imaging.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 400 {
		t.Errorf("output size = %dx%d, want 600x400", b.Dx(), b.Dy())
	}

	// Centre of the first cell must be red-ish, margin must be white-ish.
	cells, _ := testLayout().Cells(3, 0)
	mid := image.Pt((cells[0].Min.X+cells[0].Max.X)/2, (cells[0].Min.Y+cells[0].Max.Y)/2)
	r, g, b, _ := img.At(mid.X, mid.Y).RGBA()
	if r>>8 < 200 || g>>8 > 60 || b>>8 > 60 {
		t.Errorf("first cell centre = (%d,%d,%d), want red", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = img.At(2, 2).RGBA()
	if r>>8 < 230 || g>>8 < 230 || b>>8 < 230 {
		t.Errorf("margin = (%d,%d,%d), want white", r>>8, g>>8, b>>8)
	}
}

func TestRender_WithQRCode(t *testing.T) {
	dir := t.TempDir()
	photos := []string{writePhoto(t, dir, "a.jpg", color.NRGBA{R: 200, G: 200, B: 200, A: 255})}
	qr, err := QRCode("https://example.org/1717252200", 100)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if b := qr.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Fatalf("QR size = %dx%d, want 100x100", b.Dx(), b.Dy())
	}

	out := filepath.Join(dir, "final.jpg")
	if err := NewComposer().Render(photos, out, Options{Layout: testLayout(), QR: qr}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}

	// The QR area must contain dark modules on the white background.
	dark := 0
	for y := 400 - 10 - 100; y < 400-10; y++ {
		for x := 600 - 10 - 100; x < 600-10; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if (r>>8)+(g>>8)+(b>>8) < 150 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Error("no dark QR modules found in the bottom-right corner")
	}
}

func TestRender_WithTemplate(t *testing.T) {
	dir := t.TempDir()
	tpl := writePhoto(t, dir, "template.jpg", color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	photos := []string{writePhoto(t, dir, "a.jpg", color.White)}

	l := testLayout()
	l.Template = tpl
	out := filepath.Join(dir, "final.jpg")
	if err := NewComposer().Render(photos, out, Options{Layout: l}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, _ := imaging.Open(out)
	r, _, _, _ := img.At(2, 2).RGBA()
	if r>>8 > 40 {
		t.Errorf("margin should show the dark template, got red=%d", r>>8)
	}
}

func TestRender_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writePhoto(t, dir, "a.jpg", color.White)

	cases := []struct {
		name   string
		photos []string
		layout func(l *Layout)
		op     string
	}{
		{"missing_photo", []string{filepath.Join(dir, "nope.jpg")}, func(*Layout) {}, "open"},
		{"bad_colour", []string{good}, func(l *Layout) { l.Background = "not-a-colour" }, "layout"},
		{"missing_template", []string{good}, func(l *Layout) { l.Template = filepath.Join(dir, "nope.png") }, "template"},
		{"too_many", []string{good, good, good}, func(l *Layout) { l.Columns, l.Rows = 1, 1 }, "layout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := testLayout()
			tc.layout(&l)
			err := NewComposer().Render(tc.photos, filepath.Join(dir, tc.name+".jpg"), Options{Layout: l})

			var imgErr *Error
			if !errors.As(err, &imgErr) {
				t.Fatalf("expected *compose.Error, got %T: %v", err, err)
			}
			if imgErr.Op != tc.op {
				t.Errorf("Op = %q, want %q", imgErr.Op, tc.op)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff0000")
	if err != nil {
		t.Fatalf("ParseColor: %v", err)
	}
	r, g, b, _ := c.RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("ParseColor(#ff0000) = (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
	if _, err := ParseColor("red"); err == nil {
		t.Error("expected error for a named colour")
	}
}
