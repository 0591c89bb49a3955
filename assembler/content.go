package assembler

import (
	"fmt"
	"math"

	"github.com/wudi/docpdf/contentstream"
	"github.com/wudi/docpdf/coords"
	"github.com/wudi/docpdf/ir/raw"
	"github.com/wudi/docpdf/layout"
	"github.com/wudi/docpdf/resources"
)

// buildPage writes the content streams, annotations and page dictionary of
// p and returns the page reference.
func (a *assembler) buildPage(p *layout.Page, parent raw.ObjectRef) (raw.ObjectRef, error) {
	pageRef := a.doc.Allocate()
	fontRes := raw.Dict()
	xobjRes := raw.Dict()
	props := raw.Dict()
	annots := raw.NewArray()
	var contents []raw.Object

	for li, l := range p.Layers {
		mc := fmt.Sprintf("MC%d", li)
		props.Put(mc, raw.RefTo(a.ocgs[l.Name]))
		e := &emitter{height: p.Height}
		e.ops = append(e.ops,
			contentstream.Operation{Operator: "BDC", Operands: []contentstream.Operand{contentstream.Name("OC"), contentstream.Name(mc)}},
			contentstream.Op("q"))
		for _, el := range l.Elements {
			switch el := el.(type) {
			case *layout.GlyphRun:
				entry, _ := a.cat.Font(el.Font)
				fontRes.Put(el.Font.ResourceName(), raw.RefTo(entry.Ref))
				e.glyphRun(el, entry)
				if el.Link != "" {
					annots.Append(raw.RefTo(a.doc.Add(linkAnnotation(el, p.Height, pageRef))))
				}
			case *layout.ImagePlacement:
				entry, _ := a.cat.Image(el.Image)
				xobjRes.Put(el.Image.ResourceName(), raw.RefTo(entry.Ref))
				e.image(el)
			}
		}
		e.ops = append(e.ops, contentstream.Op("Q"), contentstream.Op("EMC"))
		if err := contentstream.Check(e.ops); err != nil {
			return raw.ObjectRef{}, &InvariantError{Page: p.Number, Layer: l.Name, Element: -1, Msg: "content stream", Err: err}
		}
		ref := a.doc.Add(raw.NewStream(nil, contentstream.Serialize(e.ops)))
		contents = append(contents, raw.RefTo(ref))
	}

	res := raw.Dict()
	if fontRes.Len() > 0 {
		res.Put("Font", fontRes)
	}
	if xobjRes.Len() > 0 {
		res.Put("XObject", xobjRes)
	}
	if props.Len() > 0 {
		res.Put("Properties", props)
	}
	box := raw.Numbers(0, 0, p.Width, p.Height)
	page := raw.Dict().
		Put("Type", raw.NameLiteral("Page")).
		Put("Parent", raw.RefTo(parent)).
		Put("MediaBox", box).
		Put("TrimBox", box).
		Put("CropBox", box).
		Put("Rotate", raw.NumberInt(0)).
		Put("Resources", res)
	switch len(contents) {
	case 0:
	case 1:
		page.Put("Contents", contents[0])
	default:
		page.Put("Contents", raw.NewArray(contents...))
	}
	if annots.Len() > 0 {
		page.Put("Annots", annots)
	}
	if err := a.doc.Set(pageRef, page); err != nil {
		return raw.ObjectRef{}, err
	}
	return pageRef, nil
}

// emitter accumulates the operators of one layer and tracks the text state
// that persists across text objects.
type emitter struct {
	height   float64
	ops      []contentstream.Operation
	tracking float64
	rise     float64
}

// glyphRun shows a run at (x, H-y). The baseline sits Baseline below the
// line top, expressed as a negative text rise. TJ adjustments reproduce the
// planned glyph positions from the embedded widths.
func (e *emitter) glyphRun(r *layout.GlyphRun, entry *resources.FontEntry) {
	if len(r.Glyphs) == 0 {
		return
	}
	f := entry.Font
	e.ops = append(e.ops,
		contentstream.Op("BT"),
		contentstream.Operation{Operator: "Tf", Operands: []contentstream.Operand{contentstream.Name(r.Font.ResourceName()), contentstream.Num(r.Size)}})
	if r.Tracking != e.tracking {
		e.ops = append(e.ops, contentstream.Op("Tc", r.Tracking))
		e.tracking = r.Tracking
	}
	if rise := -r.Baseline; rise != e.rise {
		e.ops = append(e.ops, contentstream.Op("Ts", rise))
		e.rise = rise
	}
	at := coords.ToPage(r.Origin, e.height)
	e.ops = append(e.ops,
		contentstream.Op("rg", r.Color.R, r.Color.G, r.Color.B),
		contentstream.Op("Td", at.X, at.Y))

	var arr []contentstream.Operand
	var run []byte
	flush := func() {
		if len(run) > 0 {
			arr = append(arr, contentstream.HexStringOperand{Value: run})
			run = nil
		}
	}
	adjust := func(delta float64) {
		tj := -delta * 1000 / r.Size
		if math.Abs(tj) < 0.001 {
			return
		}
		flush()
		arr = append(arr, contentstream.Num(tj))
	}
	pen := 0.0
	for _, g := range r.Glyphs {
		adjust(g.X - pen)
		run = append(run, byte(g.GID>>8), byte(g.GID))
		pen = g.X + float64(f.Width1000(g.GID))*r.Size/1000 + r.Tracking
	}
	flush()
	e.ops = append(e.ops,
		contentstream.Operation{Operator: "TJ", Operands: []contentstream.Operand{contentstream.ArrayOperand{Values: arr}}},
		contentstream.Op("ET"))
}

// image draws the unit square through the placement matrix composed with
// the page flip.
func (e *emitter) image(p *layout.ImagePlacement) {
	m := p.Matrix.Multiply(coords.Flip(e.height))
	e.ops = append(e.ops,
		contentstream.Op("q"),
		contentstream.Op("cm", m[:]...),
		contentstream.Operation{Operator: "Do", Operands: []contentstream.Operand{contentstream.Name(p.Image.ResourceName())}},
		contentstream.Op("Q"))
}

func linkAnnotation(r *layout.GlyphRun, height float64, page raw.ObjectRef) *raw.DictObj {
	b := r.Bounds()
	lo := coords.ToPage(coords.Point{X: b.X, Y: b.Bottom()}, height)
	hi := coords.ToPage(coords.Point{X: b.Right(), Y: b.Y}, height)
	return raw.Dict().
		Put("Type", raw.NameLiteral("Annot")).
		Put("Subtype", raw.NameLiteral("Link")).
		Put("Rect", raw.Numbers(lo.X, lo.Y, hi.X, hi.Y)).
		Put("Border", raw.Numbers(0, 0, 0)).
		Put("P", raw.RefTo(page)).
		Put("A", raw.Dict().
			Put("Type", raw.NameLiteral("Action")).
			Put("S", raw.NameLiteral("URI")).
			Put("URI", raw.Str([]byte(r.Link))))
}
