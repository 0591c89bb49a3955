package builder

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/docpdf/coords"
	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/fonts"
	"github.com/wudi/docpdf/layout"
	"github.com/wudi/docpdf/writer"
)

func newBuilder(t *testing.T, unit document.Unit) *Builder {
	t.Helper()
	b, err := New(Config{Unit: unit, Writer: writer.Config{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func docBytes(t *testing.T, doc *writer.Document) []byte {
	t.Helper()
	out, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	return out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestFontReusedAcrossPages(t *testing.T) {
	b := newBuilder(t, document.UnitPoint)
	font, err := b.AddFontData(goregular.TTF)
	if err != nil {
		t.Fatalf("AddFontData: %v", err)
	}
	again, err := b.AddFontData(goregular.TTF)
	if err != nil || again != font {
		t.Fatalf("AddFontData again = %d, %v; want %d", again, err, font)
	}
	for i := 0; i < 3; i++ {
		page, layer, err := b.AddPageWithLayer(200, 100, "Layer0")
		if err != nil {
			t.Fatalf("AddPageWithLayer: %v", err)
		}
		if int(page) != i || layer != 0 {
			t.Fatalf("indices = %d, %d", page, layer)
		}
		if err := b.WriteText(page, layer, TextOptions{Text: "Hi", Font: font, Size: 12, X: 10, Y: 20}); err != nil {
			t.Fatalf("WriteText: %v", err)
		}
	}
	var out bytes.Buffer
	if _, err := b.WriteAll(&out); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	pdf := out.String()
	if n := strings.Count(pdf, "/FontFile2 "); n != 1 {
		t.Fatalf("FontFile2 count = %d, want 1", n)
	}
	if n := strings.Count(pdf, "/Type /Page>>"); n != 3 {
		t.Fatalf("page count = %d, want 3", n)
	}
}

func TestWriteTextBaseline(t *testing.T) {
	f, err := fonts.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ascent := f.Scale(f.Ascent, 10)

	b := newBuilder(t, document.UnitPoint)
	font, _ := b.AddFontData(goregular.TTF)
	page, layer, _ := b.AddPageWithLayer(200, 100, "Text")
	if err := b.WriteText(page, layer, TextOptions{Text: "AV", Font: font, Size: 10, X: 10, Y: 30}); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	run := b.plan.Pages[0].Layers[0].Elements[0].(*layout.GlyphRun)
	if diff := cmp.Diff(coords.Point{X: 10, Y: 30 - ascent}, run.Origin); diff != "" {
		t.Fatalf("origin (-want +got):\n%s", diff)
	}
	if run.Baseline != ascent || run.BlockIndex != -1 {
		t.Fatalf("baseline = %g block = %d", run.Baseline, run.BlockIndex)
	}

	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pdf := string(docBytes(t, doc))
	td := "10 " + writer.FormatNumber(100-30+ascent) + " Td"
	if !strings.Contains(pdf, td) {
		t.Fatalf("missing %q", td)
	}
	if ts := writer.FormatNumber(-ascent) + " Ts"; !strings.Contains(pdf, ts) {
		t.Fatalf("missing %q", ts)
	}
}

func TestUnitScaling(t *testing.T) {
	b := newBuilder(t, document.UnitInch)
	page, layer, err := b.AddPageWithLayer(2, 1, "Layer0")
	if err != nil {
		t.Fatalf("AddPageWithLayer: %v", err)
	}
	img, err := b.AddImageData(pngBytes(t, 4, 2))
	if err != nil {
		t.Fatalf("AddImageData: %v", err)
	}
	if err := b.PlaceImage(page, layer, ImageOptions{Image: img, X: 0.5, Y: 0.25, Width: 1, Height: 0.5}); err != nil {
		t.Fatalf("PlaceImage: %v", err)
	}
	p := b.plan.Pages[0]
	if p.Width != 144 || p.Height != 72 {
		t.Fatalf("page size = %gx%g", p.Width, p.Height)
	}
	got := p.Layers[0].Elements[0].Bounds()
	if diff := cmp.Diff(coords.Rect{X: 36, Y: 18, W: 72, H: 36}, got); diff != "" {
		t.Fatalf("image rect (-want +got):\n%s", diff)
	}
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cm := "72 0 0 36 36 18 cm"; !strings.Contains(string(docBytes(t, doc)), cm) {
		t.Fatalf("missing %q", cm)
	}
}

func TestImageDefaultsToPixelSize(t *testing.T) {
	b := newBuilder(t, document.UnitPoint)
	page, layer, _ := b.AddPageWithLayer(100, 100, "Layer0")
	img, err := b.AddImageData(pngBytes(t, 20, 10))
	if err != nil {
		t.Fatalf("AddImageData: %v", err)
	}
	rot := &document.Transform{Rotate: 90}
	if err := b.PlaceImage(page, layer, ImageOptions{Image: img, X: 5, Y: 5, Transform: rot}); err != nil {
		t.Fatalf("PlaceImage: %v", err)
	}
	got := b.plan.Pages[0].Layers[0].Elements[0].Bounds()
	if diff := cmp.Diff(coords.Rect{X: 5, Y: 5, W: 10, H: 20}, got, approx()); diff != "" {
		t.Fatalf("rotated rect (-want +got):\n%s", diff)
	}
}

func TestLayers(t *testing.T) {
	b := newBuilder(t, document.UnitPoint)
	font, _ := b.AddFontData(goregular.TTF)
	page, base, _ := b.AddPageWithLayer(100, 100, "Background")
	top, err := b.AddLayer(page, "Notes")
	if err != nil || top != 1 {
		t.Fatalf("AddLayer = %d, %v", top, err)
	}
	if same, _ := b.AddLayer(page, "Background"); same != base {
		t.Fatalf("existing layer name should return its index, got %d", same)
	}
	for _, l := range []LayerIndex{base, top} {
		if err := b.WriteText(page, l, TextOptions{Text: "x", Font: font, Size: 8, X: 1, Y: 10}); err != nil {
			t.Fatalf("WriteText: %v", err)
		}
	}
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pdf := string(docBytes(t, doc))
	for _, want := range []string{"/Name (Background)", "/Name (Notes)", "/OC /MC0 BDC", "/OC /MC1 BDC"} {
		if !strings.Contains(pdf, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestAddFontFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	b := newBuilder(t, document.UnitPoint)
	a, err := b.AddFont(path)
	if err != nil {
		t.Fatalf("AddFont: %v", err)
	}
	if again, _ := b.AddFont(path); again != a {
		t.Fatalf("same path gave %d and %d", a, again)
	}
	if _, err := b.AddFont(filepath.Join(t.TempDir(), "missing.ttf")); err == nil {
		t.Fatalf("missing font file should fail")
	}
}

func TestErrors(t *testing.T) {
	b := newBuilder(t, document.UnitPoint)
	font, _ := b.AddFontData(goregular.TTF)
	page, layer, _ := b.AddPageWithLayer(100, 100, "Layer0")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unknown page", b.WriteText(5, 0, TextOptions{Font: font, Size: 10}), ErrUnknownPage},
		{"unknown layer", b.WriteText(page, 3, TextOptions{Font: font, Size: 10}), ErrUnknownLayer},
		{"unknown font", b.WriteText(page, layer, TextOptions{Font: 99, Size: 10}), ErrUnknownFont},
		{"zero size", b.WriteText(page, layer, TextOptions{Font: font}), ErrInvalidValue},
		{"color above one", b.WriteText(page, layer, TextOptions{Font: font, Size: 10, Color: document.Color{R: 2}}), ErrInvalidValue},
		{"negative color", b.WriteText(page, layer, TextOptions{Font: font, Size: 10, Color: document.Color{B: -0.5}}), ErrInvalidValue},
		{"unknown image", b.PlaceImage(page, layer, ImageOptions{Image: 7}), ErrUnknownImage},
		{"empty layer name", func() error { _, err := b.AddLayer(page, ""); return err }(), ErrInvalidValue},
		{"bad page size", func() error { _, _, err := b.AddPageWithLayer(0, 10, "L"); return err }(), ErrInvalidValue},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.want) {
				t.Fatalf("err = %v, want %v", tc.err, tc.want)
			}
		})
	}

	if _, err := New(Config{Unit: "furlong"}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("unknown unit: %v", err)
	}
}

func TestBuildOnce(t *testing.T) {
	b := newBuilder(t, document.UnitPoint)
	if _, err := b.Build(); !errors.Is(err, ErrUnknownPage) {
		t.Fatalf("Build without pages: %v", err)
	}
	b.AddPageWithLayer(100, 100, "Layer0")
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := b.Build(); !errors.Is(err, ErrBuilt) {
		t.Fatalf("second Build: %v", err)
	}
	if _, err := b.AddFontData(goregular.TTF); !errors.Is(err, ErrBuilt) {
		t.Fatalf("AddFontData after Build: %v", err)
	}
	if _, _, err := b.AddPageWithLayer(10, 10, "L"); !errors.Is(err, ErrBuilt) {
		t.Fatalf("AddPageWithLayer after Build: %v", err)
	}
}

func approx() cmp.Option {
	return cmp.Comparer(func(a, b float64) bool {
		d := a - b
		return d < 1e-9 && d > -1e-9
	})
}
