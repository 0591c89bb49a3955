// Package builder is the manual authoring surface: the caller adds fonts,
// images, pages and layers and places text and images at explicit
// positions. Nothing is wrapped, normalized or paginated.
//
// Coordinates use the document convention: origin at the top-left of the
// page, y growing downward, in the configured unit. Finalization goes
// through the same assembler as the conversion pipeline, so every font and
// image is embedded at most once.
package builder

import (
	"errors"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/language"

	"github.com/wudi/docpdf/assembler"
	"github.com/wudi/docpdf/coords"
	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/images"
	"github.com/wudi/docpdf/layout"
	"github.com/wudi/docpdf/observability"
	"github.com/wudi/docpdf/resources"
	"github.com/wudi/docpdf/writer"
)

var (
	ErrUnknownPage  = errors.New("unknown page")
	ErrUnknownLayer = errors.New("unknown layer")
	ErrUnknownFont  = errors.New("unknown font")
	ErrUnknownImage = errors.New("unknown image")
	ErrInvalidValue = errors.New("invalid value")
	ErrBuilt        = errors.New("document already built")
)

// PageIndex and LayerIndex are handed out sequentially from 0.
type PageIndex int
type LayerIndex int

type Config struct {
	Unit              document.Unit
	Metadata          document.Metadata
	SubsetFonts       bool
	MaxImageDimension int
	Writer            writer.Config
	Logger            observability.Logger
}

// DefaultConfig measures in points, subsets fonts and compresses streams.
func DefaultConfig() Config {
	return Config{Unit: document.UnitPoint, SubsetFonts: true, Writer: writer.DefaultConfig()}
}

type Builder struct {
	cfg    Config
	scale  float64
	lang   language.Tag
	log    observability.Logger
	loader *resources.SourceLoader
	cat    *resources.Catalog
	plan   *layout.Plan
	built  bool
}

func New(cfg Config) (*Builder, error) {
	scale, ok := cfg.Unit.Points()
	if !ok {
		return nil, fmt.Errorf("unit %q: %w", cfg.Unit, ErrInvalidValue)
	}
	lang := language.Und
	if cfg.Metadata.Language != "" {
		tag, err := language.Parse(cfg.Metadata.Language)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", cfg.Metadata.Language, err)
		}
		lang = tag
	}
	log := observability.OrNop(cfg.Logger)
	loader := resources.NewSourceLoader()
	loader.Images = images.Options{MaxDimension: cfg.MaxImageDimension}
	return &Builder{
		cfg:    cfg,
		scale:  scale,
		lang:   lang,
		log:    log,
		loader: loader,
		cat:    resources.NewCatalog(loader, resources.WithLogger(log)),
		plan:   &layout.Plan{},
	}, nil
}

// AddFont loads the font file at path. Adding the same file twice returns
// the same id.
func (b *Builder) AddFont(path string) (resources.FontID, error) {
	return b.addFont(document.Source{Path: path})
}

// AddFontData loads a font from memory. Identical bytes share an id.
func (b *Builder) AddFontData(data []byte) (resources.FontID, error) {
	return b.addFont(document.Source{Data: data})
}

func (b *Builder) addFont(src document.Source) (resources.FontID, error) {
	if b.built {
		return 0, ErrBuilt
	}
	return b.cat.InternFont(b.loader.Register(src))
}

func (b *Builder) AddImage(path string) (resources.ImageID, error) {
	return b.addImage(document.Source{Path: path})
}

func (b *Builder) AddImageData(data []byte) (resources.ImageID, error) {
	return b.addImage(document.Source{Data: data})
}

func (b *Builder) addImage(src document.Source) (resources.ImageID, error) {
	if b.built {
		return 0, ErrBuilt
	}
	return b.cat.InternImage(b.loader.Register(src))
}

// AddPageWithLayer appends a page of the given size with one layer.
func (b *Builder) AddPageWithLayer(width, height float64, layerName string) (PageIndex, LayerIndex, error) {
	if b.built {
		return 0, 0, ErrBuilt
	}
	if layerName == "" {
		return 0, 0, fmt.Errorf("empty layer name: %w", ErrInvalidValue)
	}
	w, h := width*b.scale, height*b.scale
	if !positive(w) || !positive(h) {
		return 0, 0, fmt.Errorf("page size %gx%g: %w", width, height, ErrInvalidValue)
	}
	p := &layout.Page{Number: len(b.plan.Pages) + 1, Width: w, Height: h}
	b.plan.Pages = append(b.plan.Pages, p)
	p.Layer(layerName)
	return PageIndex(len(b.plan.Pages) - 1), 0, nil
}

// AddLayer adds a layer on top of the page's existing layers. A name
// already used on the page returns that layer.
func (b *Builder) AddLayer(page PageIndex, name string) (LayerIndex, error) {
	p, err := b.page(page)
	if err != nil {
		return 0, err
	}
	if name == "" {
		return 0, fmt.Errorf("empty layer name: %w", ErrInvalidValue)
	}
	l := p.Layer(name)
	for i, have := range p.Layers {
		if have == l {
			return LayerIndex(i), nil
		}
	}
	return 0, ErrUnknownLayer
}

// PageCount returns the number of pages added so far.
func (b *Builder) PageCount() int { return len(b.plan.Pages) }

func (b *Builder) page(i PageIndex) (*layout.Page, error) {
	if b.built {
		return nil, ErrBuilt
	}
	if i < 0 || int(i) >= len(b.plan.Pages) {
		return nil, fmt.Errorf("page %d: %w", i, ErrUnknownPage)
	}
	return b.plan.Pages[i], nil
}

func (b *Builder) layer(pi PageIndex, li LayerIndex) (*layout.Layer, error) {
	p, err := b.page(pi)
	if err != nil {
		return nil, err
	}
	if li < 0 || int(li) >= len(p.Layers) {
		return nil, fmt.Errorf("page %d layer %d: %w", pi, li, ErrUnknownLayer)
	}
	return p.Layers[li], nil
}

// TextOptions places one line of text. (X, Y) is the start of the baseline.
type TextOptions struct {
	Text     string
	Font     resources.FontID
	Size     float64
	Color    document.Color
	Tracking float64
	X, Y     float64
	Link     string
}

// WriteText draws opts.Text on one line without wrapping.
func (b *Builder) WriteText(page PageIndex, layer LayerIndex, opts TextOptions) error {
	l, err := b.layer(page, layer)
	if err != nil {
		return err
	}
	entry, ok := b.cat.Font(opts.Font)
	if !ok {
		return fmt.Errorf("font %d: %w", opts.Font, ErrUnknownFont)
	}
	size := opts.Size * b.scale
	if !positive(size) || size > document.MaxFontSize {
		return fmt.Errorf("font size %g: %w", opts.Size, ErrInvalidValue)
	}
	x, y, tracking := opts.X*b.scale, opts.Y*b.scale, opts.Tracking*b.scale
	if !finite(x) || !finite(y) || !finite(tracking) {
		return fmt.Errorf("text position: %w", ErrInvalidValue)
	}
	if !opts.Color.InRange() {
		return fmt.Errorf("text color %v: %w", opts.Color, ErrInvalidValue)
	}
	f := entry.Font
	glyphs, _, missing := layout.Shape(f, opts.Text, size, tracking)
	for _, r := range missing {
		b.log.Warn("glyph missing from font, using .notdef",
			observability.String("font", f.PostScriptName), observability.String("rune", fmt.Sprintf("%U", r)))
	}
	for _, g := range glyphs {
		if err := b.cat.UseGlyph(opts.Font, g.GID, g.Runes); err != nil {
			return err
		}
	}
	ascent := f.Scale(f.Ascent, size)
	l.Elements = append(l.Elements, &layout.GlyphRun{
		BlockIndex: -1,
		Font:       opts.Font,
		Size:       size,
		Color:      opts.Color,
		Tracking:   tracking,
		Origin:     coords.Point{X: x, Y: y - ascent},
		Baseline:   ascent,
		LineHeight: f.LineHeight(size),
		Glyphs:     glyphs,
		Link:       opts.Link,
	})
	return nil
}

// ImageOptions places an image with its top-left corner at (X, Y). A zero
// Width or Height is derived from the pixel size at 72 dpi.
type ImageOptions struct {
	Image     resources.ImageID
	X, Y      float64
	Width     float64
	Height    float64
	Transform *document.Transform
}

func (b *Builder) PlaceImage(page PageIndex, layer LayerIndex, opts ImageOptions) error {
	l, err := b.layer(page, layer)
	if err != nil {
		return err
	}
	entry, ok := b.cat.Image(opts.Image)
	if !ok {
		return fmt.Errorf("image %d: %w", opts.Image, ErrUnknownImage)
	}
	t := document.Transform{ScaleX: 1, ScaleY: 1}
	if opts.Transform != nil {
		t = *opts.Transform
		if t.ScaleX == 0 {
			t.ScaleX = 1
		}
		if t.ScaleY == 0 {
			t.ScaleY = 1
		}
	}
	for _, v := range []float64{opts.X, opts.Y, opts.Width, opts.Height, t.ScaleX, t.ScaleY, t.Rotate, t.TranslateX, t.TranslateY} {
		if !finite(v) {
			return fmt.Errorf("image placement: %w", ErrInvalidValue)
		}
	}
	if opts.Width < 0 || opts.Height < 0 || t.ScaleX < 0 || t.ScaleY < 0 {
		return fmt.Errorf("image size: %w", ErrInvalidValue)
	}
	w, h := layout.PlacedSize(opts.Width*b.scale, opts.Height*b.scale, entry.Image)
	local := layout.ImageMatrix(w, h, t)
	bb := local.Bounds()
	x := opts.X*b.scale + t.TranslateX*b.scale
	y := opts.Y*b.scale + t.TranslateY*b.scale
	m := local.Multiply(coords.Translate(x-bb.X, y-bb.Y))
	l.Elements = append(l.Elements, &layout.ImagePlacement{BlockIndex: -1, Image: opts.Image, Rect: m.Bounds(), Matrix: m})
	return nil
}

// Build finalizes the document. It can be called once; the builder
// rejects further changes afterwards.
func (b *Builder) Build() (*writer.Document, error) {
	if b.built {
		return nil, ErrBuilt
	}
	if len(b.plan.Pages) == 0 {
		return nil, fmt.Errorf("no pages: %w", ErrUnknownPage)
	}
	b.built = true
	return assembler.Assemble(b.plan, b.cat, assembler.Options{
		Writer:      b.cfg.Writer,
		Metadata:    b.cfg.Metadata,
		Language:    b.lang,
		SubsetFonts: b.cfg.SubsetFonts,
		Logger:      b.log,
	})
}

// WriteAll builds the document and writes it to w.
func (b *Builder) WriteAll(w io.Writer) (int64, error) {
	doc, err := b.Build()
	if err != nil {
		return 0, err
	}
	return doc.WriteTo(w)
}

func finite(v float64) bool   { return !math.IsNaN(v) && !math.IsInf(v, 0) }
func positive(v float64) bool { return finite(v) && v > 0 }
