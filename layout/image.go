package layout

import (
	"fmt"
	"math"

	"github.com/wudi/docpdf/coords"
	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/images"
	"github.com/wudi/docpdf/observability"
	"github.com/wudi/docpdf/resources"
)

func (e *Engine) layoutImage(b *document.ValidBlock) error {
	vi := b.Image
	key := resources.KeyFor(vi.Image.Source)
	id, err := e.cat.InternImage(key)
	if err != nil {
		return &LayoutError{Kind: ErrResourceUnavailable, Block: b.Index, Key: key, Err: err}
	}
	entry, _ := e.cat.Image(id)
	w, h := PlacedSize(vi.Width, vi.Height, entry.Image)

	local := ImageMatrix(w, h, vi.Transform)
	bb := local.Bounds()
	if bb.W > e.content.W+eps || bb.H > e.content.H+eps {
		e.ensurePage()
		return e.tooLarge(b.Index, fmt.Sprintf("image is %gx%g, content area is %gx%g", bb.W, bb.H, e.content.W, e.content.H))
	}
	t := vi.Transform
	footprint := math.Max(0, t.TranslateY) + bb.H
	if err := e.checkPageBreak(footprint, b.Index); err != nil {
		return err
	}
	m := local.Multiply(coords.Translate(e.cursorX-bb.X+t.TranslateX, e.cursorY-bb.Y+t.TranslateY))
	rect := m.Bounds()
	if !e.content.Contains(rect, eps) {
		return e.tooLarge(b.Index, fmt.Sprintf("translated image at (%g, %g) leaves the content area", rect.X, rect.Y))
	}
	e.place(b, &ImagePlacement{BlockIndex: b.Index, Image: id, Rect: rect, Matrix: m})
	e.log.Debug("image placed", observability.Int("block", b.Index),
		observability.Float("width", rect.W), observability.Float("height", rect.H))
	e.cursorY += footprint
	e.pageUsed = true
	return nil
}

// PlacedSize fills in a missing width or height from the pixel size at
// 72 dpi, keeping the aspect ratio.
func PlacedSize(w, h float64, img *images.Image) (float64, float64) {
	pw, ph := float64(img.Width), float64(img.Height)
	switch {
	case w == 0 && h == 0:
		return pw, ph
	case w == 0:
		return h * pw / ph, h
	case h == 0:
		return w, w * ph / pw
	}
	return w, h
}

// ImageMatrix maps the image unit square into document space with the
// image's top-left corner at the origin, then scales and rotates it.
// Rotation is counterclockwise as seen on the page, which is clockwise in
// the y-down document space.
func ImageMatrix(w, h float64, t document.Transform) coords.Matrix {
	m := coords.Matrix{w, 0, 0, -h, 0, h}
	m = m.Multiply(coords.Scale(t.ScaleX, t.ScaleY))
	if t.Rotate != 0 {
		m = m.Multiply(coords.Rotate(-t.Rotate * math.Pi / 180))
	}
	return m
}
