package document

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"github.com/wudi/docpdf/coords"
)

// MaxFontSize bounds font sizes, in points.
const MaxFontSize = 10000

// Validated is a Document that passed Validate. All lengths are in points
// and every run carries its fully resolved style.
type Validated struct {
	Source     *Document
	Metadata   Metadata
	Language   language.Tag
	PageWidth  float64
	PageHeight float64
	Margins    Margins
	Blocks     []ValidBlock
}

// ContentRect is the page area inside the margins, in document space.
func (v *Validated) ContentRect() coords.Rect {
	return coords.Rect{
		X: v.Margins.Left,
		Y: v.Margins.Top,
		W: v.PageWidth - v.Margins.Left - v.Margins.Right,
		H: v.PageHeight - v.Margins.Top - v.Margins.Bottom,
	}
}

type ValidBlock struct {
	Index      int
	Kind       BlockKind
	Layer      string
	SpaceAfter float64
	Runs       []ValidRun
	Image      *ValidImage
}

type ValidRun struct {
	Index      int
	Text       string
	Font       FontDecl
	Size       float64
	Color      Color
	Tracking   float64
	LineHeight float64
	Language   language.Tag
	Link       string
}

type ValidImage struct {
	Image     ImageDecl
	Width     float64
	Height    float64
	Transform Transform
}

type validator struct {
	doc    *Document
	scale  float64
	fonts  map[string]int
	images map[string]int
	style  Style
}

// Validate checks doc and resolves it. It does not read any resource bytes.
func Validate(doc *Document) (*Validated, error) {
	if doc == nil {
		return nil, docErr(ErrMalformedBlock, -1, -1, "", "nil document")
	}
	v := &validator{doc: doc}
	out := &Validated{Source: doc, Metadata: doc.Metadata, Language: language.Und}
	if err := v.geometry(out); err != nil {
		return nil, err
	}
	if doc.Metadata.Language != "" {
		tag, err := language.Parse(doc.Metadata.Language)
		if err != nil {
			return nil, docErr(ErrInvalidMetadata, -1, -1, "metadata.lang", err.Error())
		}
		out.Language = tag
	}
	if err := v.declarations(); err != nil {
		return nil, err
	}
	if err := v.defaults(); err != nil {
		return nil, err
	}
	out.Blocks = make([]ValidBlock, 0, len(doc.Blocks))
	for i := range doc.Blocks {
		b, err := v.block(i, &doc.Blocks[i])
		if err != nil {
			return nil, err
		}
		out.Blocks = append(out.Blocks, b)
	}
	return out, nil
}

func docErr(kind error, block, run int, field, msg string) *DocumentError {
	return &DocumentError{Kind: kind, Block: block, Run: run, Field: field, Msg: msg}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (v *validator) geometry(out *Validated) error {
	pc := v.doc.Page
	scale, ok := pc.Unit.Points()
	if !ok {
		return docErr(ErrInvalidGeometry, -1, -1, "page.unit", fmt.Sprintf("unknown unit %q", pc.Unit))
	}
	v.scale = scale
	w, h := pc.Width*scale, pc.Height*scale
	if pc.Width == 0 && pc.Height == 0 && pc.Size != "" {
		var known bool
		w, h, known = pc.Size.Dimensions()
		if !known {
			return docErr(ErrInvalidGeometry, -1, -1, "page.size", fmt.Sprintf("unknown paper size %q", pc.Size))
		}
	}
	if !finite(w) || !finite(h) || w <= 0 || h <= 0 {
		return docErr(ErrInvalidGeometry, -1, -1, "page", fmt.Sprintf("page size %gx%g must be positive", w, h))
	}
	m := Margins{Top: pc.Margins.Top * scale, Right: pc.Margins.Right * scale, Bottom: pc.Margins.Bottom * scale, Left: pc.Margins.Left * scale}
	for _, side := range []struct {
		name  string
		value float64
		limit float64
	}{
		{"top", m.Top, h / 2},
		{"right", m.Right, w / 2},
		{"bottom", m.Bottom, h / 2},
		{"left", m.Left, w / 2},
	} {
		if !finite(side.value) || side.value < 0 || side.value > side.limit {
			return docErr(ErrInvalidGeometry, -1, -1, "page.margins."+side.name,
				fmt.Sprintf("margin %g must be within [0, %g]", side.value, side.limit))
		}
	}
	out.PageWidth, out.PageHeight, out.Margins = w, h, m
	return nil
}

func (v *validator) declarations() error {
	v.fonts = make(map[string]int, len(v.doc.Fonts))
	for i, f := range v.doc.Fonts {
		field := fmt.Sprintf("fonts[%d]", i)
		if f.Name == "" {
			return docErr(ErrDanglingResourceReference, -1, -1, field, "font declaration has no name")
		}
		if _, dup := v.fonts[f.Name]; dup {
			return docErr(ErrDuplicateResource, -1, -1, field, fmt.Sprintf("font %q declared twice", f.Name))
		}
		if f.Path == "" && len(f.Data) == 0 {
			return docErr(ErrDanglingResourceReference, -1, -1, field, fmt.Sprintf("font %q has neither path nor data", f.Name))
		}
		v.fonts[f.Name] = i
	}
	v.images = make(map[string]int, len(v.doc.Images))
	for i, img := range v.doc.Images {
		field := fmt.Sprintf("images[%d]", i)
		if img.Name == "" {
			return docErr(ErrDanglingResourceReference, -1, -1, field, "image declaration has no name")
		}
		if _, dup := v.images[img.Name]; dup {
			return docErr(ErrDuplicateResource, -1, -1, field, fmt.Sprintf("image %q declared twice", img.Name))
		}
		if img.Path == "" && len(img.Data) == 0 {
			return docErr(ErrDanglingResourceReference, -1, -1, field, fmt.Sprintf("image %q has neither path nor data", img.Name))
		}
		v.images[img.Name] = i
	}
	return nil
}

func (v *validator) defaults() error {
	s := v.doc.Style
	if s.Size == 0 {
		s.Size = DefaultFontSize
	} else {
		s.Size *= v.scale
	}
	if !finite(s.Size) || s.Size <= 0 || s.Size > MaxFontSize {
		return docErr(ErrInvalidStyle, -1, -1, "style.size", fmt.Sprintf("size %g must be in (0, %d]", s.Size, MaxFontSize))
	}
	if s.Color == nil {
		s.Color = &Black
	} else if err := checkColor(*s.Color); err != "" {
		return docErr(ErrInvalidStyle, -1, -1, "style.color", err)
	}
	if !finite(s.LineHeight) || s.LineHeight < 0 {
		return docErr(ErrInvalidStyle, -1, -1, "style.lineHeight", "line height must be a non-negative multiple of the size")
	}
	s.Tracking *= v.scale
	if !finite(s.Tracking) {
		return docErr(ErrInvalidStyle, -1, -1, "style.tracking", "tracking must be finite")
	}
	v.style = s
	return nil
}

func checkColor(c Color) string {
	for _, ch := range []float64{c.R, c.G, c.B} {
		if !finite(ch) || ch < 0 || ch > 1 {
			return fmt.Sprintf("channel %g outside [0, 1]", ch)
		}
	}
	return ""
}

func (v *validator) block(i int, b *Block) (ValidBlock, error) {
	out := ValidBlock{Index: i, Kind: b.Kind, Layer: b.Layer, SpaceAfter: b.SpaceAfter * v.scale}
	if !finite(out.SpaceAfter) || out.SpaceAfter < 0 {
		return out, docErr(ErrInvalidGeometry, i, -1, "spaceAfter", "must be a non-negative length")
	}
	switch b.Kind {
	case KindText:
		if b.Text == nil || b.Image != nil {
			return out, docErr(ErrMalformedBlock, i, -1, "text", "text block must carry only a text payload")
		}
		if len(b.Text.Runs) == 0 {
			return out, docErr(ErrEmptyText, i, -1, "runs", "text block has no runs")
		}
		out.Runs = make([]ValidRun, 0, len(b.Text.Runs))
		for j := range b.Text.Runs {
			r, err := v.run(i, j, &b.Text.Runs[j])
			if err != nil {
				return out, err
			}
			out.Runs = append(out.Runs, r)
		}
	case KindImage:
		if b.Image == nil || b.Text != nil {
			return out, docErr(ErrMalformedBlock, i, -1, "image", "image block must carry only an image payload")
		}
		img, err := v.image(i, b.Image)
		if err != nil {
			return out, err
		}
		out.Image = img
	default:
		return out, docErr(ErrMalformedBlock, i, -1, "kind", fmt.Sprintf("unknown block kind %q", b.Kind))
	}
	return out, nil
}

func (v *validator) run(bi, ri int, r *Run) (ValidRun, error) {
	out := ValidRun{Index: ri, Text: r.Text, Link: r.Link, LineHeight: v.style.LineHeight, Language: language.Und}
	if r.Text == "" && !r.Empty {
		return out, docErr(ErrEmptyText, bi, ri, "text", "run has no text and is not marked empty")
	}
	font, err := v.resolveFont(r.Font, r.FontStyle)
	if err != nil {
		err.Block, err.Run = bi, ri
		return out, err
	}
	out.Font = font

	out.Size = v.style.Size
	if r.Size != 0 {
		out.Size = r.Size * v.scale
	}
	if !finite(out.Size) || out.Size <= 0 || out.Size > MaxFontSize {
		return out, docErr(ErrInvalidStyle, bi, ri, "size", fmt.Sprintf("size %g must be in (0, %d]", out.Size, MaxFontSize))
	}
	out.Color = *v.style.Color
	if r.Color != nil {
		if msg := checkColor(*r.Color); msg != "" {
			return out, docErr(ErrInvalidStyle, bi, ri, "color", msg)
		}
		out.Color = *r.Color
	}
	out.Tracking = v.style.Tracking
	if r.Tracking != nil {
		out.Tracking = *r.Tracking * v.scale
		if !finite(out.Tracking) {
			return out, docErr(ErrInvalidStyle, bi, ri, "tracking", "tracking must be finite")
		}
	}
	if r.Language != "" {
		tag, err := language.Parse(r.Language)
		if err != nil {
			return out, docErr(ErrInvalidStyle, bi, ri, "lang", err.Error())
		}
		out.Language = tag
	}
	if r.Link != "" {
		u, err := url.Parse(r.Link)
		if err != nil || u.Scheme == "" {
			return out, docErr(ErrInvalidStyle, bi, ri, "link", fmt.Sprintf("link %q is not an absolute URI", r.Link))
		}
	}
	return out, nil
}

func normalizeFontStyle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "regular", "normal":
		return "normal"
	case "bolditalic", "bold italic", "bold-italic":
		return "bold-italic"
	}
	return s
}

// resolveFont finds the declaration a run refers to: by family and style
// when a style is given, then by name, then by family in its normal style.
func (v *validator) resolveFont(name, style string) (FontDecl, *DocumentError) {
	if name == "" {
		name = v.style.Font
	}
	if name == "" {
		if len(v.doc.Fonts) == 0 {
			return FontDecl{}, docErr(ErrDanglingResourceReference, -1, -1, "font", "no font declared")
		}
		name = v.doc.Fonts[0].Name
	}
	want := normalizeFontStyle(style)
	if style != "" {
		for _, f := range v.doc.Fonts {
			if f.Family == name && normalizeFontStyle(f.Style) == want {
				return f, nil
			}
		}
	}
	if i, ok := v.fonts[name]; ok && (style == "" || want == normalizeFontStyle(v.doc.Fonts[i].Style)) {
		return v.doc.Fonts[i], nil
	}
	if style == "" {
		for _, f := range v.doc.Fonts {
			if f.Family == name && normalizeFontStyle(f.Style) == "normal" {
				return f, nil
			}
		}
	}
	if style != "" {
		return FontDecl{}, docErr(ErrDanglingResourceReference, -1, -1, "font", fmt.Sprintf("no %s face for font %q", want, name))
	}
	return FontDecl{}, docErr(ErrDanglingResourceReference, -1, -1, "font", fmt.Sprintf("font %q is not declared", name))
}

func (v *validator) image(bi int, ib *ImageBlock) (*ValidImage, error) {
	idx, ok := v.images[ib.Image]
	if !ok {
		return nil, docErr(ErrDanglingResourceReference, bi, -1, "image", fmt.Sprintf("image %q is not declared", ib.Image))
	}
	out := &ValidImage{Image: v.doc.Images[idx], Width: ib.Width * v.scale, Height: ib.Height * v.scale}
	if !finite(out.Width) || !finite(out.Height) || out.Width < 0 || out.Height < 0 {
		return nil, docErr(ErrInvalidGeometry, bi, -1, "size", "image size must be non-negative")
	}
	t := Transform{ScaleX: 1, ScaleY: 1}
	if ib.Transform != nil {
		t = *ib.Transform
		if t.ScaleX == 0 {
			t.ScaleX = 1
		}
		if t.ScaleY == 0 {
			t.ScaleY = 1
		}
		t.TranslateX *= v.scale
		t.TranslateY *= v.scale
	}
	for _, f := range []float64{t.ScaleX, t.ScaleY, t.Rotate, t.TranslateX, t.TranslateY} {
		if !finite(f) {
			return nil, docErr(ErrInvalidStyle, bi, -1, "transform", "transform values must be finite")
		}
	}
	if t.ScaleX < 0 || t.ScaleY < 0 {
		return nil, docErr(ErrInvalidStyle, bi, -1, "transform", "scale must be positive")
	}
	out.Transform = t
	return out, nil
}
