package layout

import (
	"github.com/wudi/docpdf/coords"
	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/fonts"
	"github.com/wudi/docpdf/resources"
)

// Plan is the placement of every element of a document, page by page.
// All lengths are in points and all positions are in document space.
type Plan struct {
	Pages []*Page
}

type Page struct {
	Number int
	Width  float64
	Height float64
	Layers []*Layer
}

// Layer returns the layer named name, creating it at the end of the page's
// layer list on first use.
func (p *Page) Layer(name string) *Layer {
	for _, l := range p.Layers {
		if l.Name == name {
			return l
		}
	}
	l := &Layer{Name: name}
	p.Layers = append(p.Layers, l)
	return l
}

type Layer struct {
	Name     string
	Elements []Element
}

// Element is a placed glyph run or image. The set of implementations is
// closed: *GlyphRun and *ImagePlacement.
type Element interface {
	Bounds() coords.Rect
	Block() int
	element()
}

// Glyph is one glyph of a run. X is its offset from the run origin and
// Advance the distance to the next pen position, tracking included.
type Glyph struct {
	GID     fonts.GlyphID
	Runes   []rune
	X       float64
	Advance float64
}

// GlyphRun is one line segment of one text run. Origin is the top-left of
// the line box; the baseline lies Baseline points below it.
type GlyphRun struct {
	BlockIndex int
	RunIndex   int
	Font       resources.FontID
	Size       float64
	Color      document.Color
	Tracking   float64
	Origin     coords.Point
	Baseline   float64
	LineHeight float64
	Glyphs     []Glyph
	Link       string
}

// Width is the distance from the origin to the pen position after the last
// glyph.
func (r *GlyphRun) Width() float64 {
	if len(r.Glyphs) == 0 {
		return 0
	}
	last := r.Glyphs[len(r.Glyphs)-1]
	return last.X + last.Advance
}

func (r *GlyphRun) Bounds() coords.Rect {
	return coords.Rect{X: r.Origin.X, Y: r.Origin.Y, W: r.Width(), H: r.LineHeight}
}

func (r *GlyphRun) Block() int { return r.BlockIndex }
func (*GlyphRun) element()     {}

// ImagePlacement draws an image. Matrix maps the PDF image unit square
// into document space, so Rect is Matrix.Bounds().
type ImagePlacement struct {
	BlockIndex int
	Image      resources.ImageID
	Rect       coords.Rect
	Matrix     coords.Matrix
}

func (p *ImagePlacement) Bounds() coords.Rect { return p.Rect }
func (p *ImagePlacement) Block() int          { return p.BlockIndex }
func (*ImagePlacement) element()              {}
