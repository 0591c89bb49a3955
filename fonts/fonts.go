// Package fonts parses TrueType and OpenType fonts into the metrics the
// layout engine and assembler need, shapes text with HarfBuzz and prepares
// embedded font programs.
package fonts

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// GlyphID indexes a glyph in the font program. With Identity-H encoding it
// is also the character code written to content streams.
type GlyphID uint16

// Outlines identifies the glyph format of the font program.
type Outlines int

const (
	OutlinesTrueType Outlines = iota
	OutlinesCFF
)

var ErrEmptyFont = errors.New("font data is empty")

// Font is a parsed font program. All metrics are in font units. A Font is
// immutable after Parse and safe for concurrent use.
type Font struct {
	Data           []byte
	PostScriptName string
	Outlines       Outlines
	UnitsPerEm     int
	Ascent         int // above the baseline, positive
	Descent        int // below the baseline, negative
	LineGap        int
	CapHeight      int
	ItalicAngle    float64
	BBox           [4]int
	NumGlyphs      int

	sf       *sfnt.Font
	advances []int
	ppem     fixed.Int26_6
	bufs     sync.Pool

	shapeOnce sync.Once
	shaper    *shaper
	shapeErr  error
}

// Parse reads a TrueType or OpenType font program.
func Parse(data []byte) (*Font, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFont
	}
	sf, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	upem := int(sf.UnitsPerEm())
	if upem == 0 {
		return nil, fmt.Errorf("parse font: invalid unitsPerEm")
	}
	f := &Font{
		Data:       data,
		sf:         sf,
		UnitsPerEm: upem,
		NumGlyphs:  sf.NumGlyphs(),
		ppem:       fixed.Int26_6(upem << 6),
	}
	f.bufs.New = func() any { return new(sfnt.Buffer) }
	if bytes.HasPrefix(data, []byte("OTTO")) {
		f.Outlines = OutlinesCFF
	}

	buf := &sfnt.Buffer{}
	f.PostScriptName = postScriptName(sf, buf)

	metrics, err := sf.Metrics(buf, f.ppem, xfont.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("parse font metrics: %w", err)
	}
	f.Ascent = units(metrics.Ascent)
	f.Descent = -units(metrics.Descent)
	f.LineGap = units(metrics.Height) - f.Ascent + f.Descent
	if f.LineGap < 0 {
		f.LineGap = 0
	}
	f.CapHeight = units(metrics.CapHeight)
	if f.CapHeight == 0 {
		f.CapHeight = f.Ascent
	}
	// sfnt reports bounds with y pointing down.
	if b, err := sf.Bounds(buf, f.ppem, xfont.HintingNone); err == nil {
		f.BBox = [4]int{units(b.Min.X), -units(b.Max.Y), units(b.Max.X), -units(b.Min.Y)}
	}
	if post := sf.PostTable(); post != nil {
		f.ItalicAngle = post.ItalicAngle
	}

	f.advances = make([]int, f.NumGlyphs)
	for i := range f.advances {
		adv, err := sf.GlyphAdvance(buf, sfnt.GlyphIndex(i), f.ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		f.advances[i] = units(adv)
	}
	return f, nil
}

func units(v fixed.Int26_6) int { return int((v + 32) >> 6) }

func postScriptName(sf *sfnt.Font, buf *sfnt.Buffer) string {
	name, _ := sf.Name(buf, sfnt.NameIDPostScript)
	if name == "" {
		name, _ = sf.Name(buf, sfnt.NameIDFull)
	}
	var b strings.Builder
	for _, r := range name {
		if r > 0x20 && r < 0x7F && !strings.ContainsRune("()<>[]{}/%#", r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Font"
	}
	return b.String()
}

// GlyphIndex maps r through the font's cmap. The bool is false when the font
// has no glyph for r, in which case the .notdef glyph 0 is returned.
func (f *Font) GlyphIndex(r rune) (GlyphID, bool) {
	buf := f.bufs.Get().(*sfnt.Buffer)
	defer f.bufs.Put(buf)
	gi, err := f.sf.GlyphIndex(buf, r)
	if err != nil || gi == 0 {
		return 0, false
	}
	return GlyphID(gi), true
}

// Advance returns the horizontal advance of g in font units.
func (f *Font) Advance(g GlyphID) int {
	if int(g) >= len(f.advances) {
		return 0
	}
	return f.advances[g]
}

// Kern returns the kerning adjustment between a and b in font units, or 0
// when the font has no kern table entry for the pair.
func (f *Font) Kern(a, b GlyphID) int {
	buf := f.bufs.Get().(*sfnt.Buffer)
	defer f.bufs.Put(buf)
	k, err := f.sf.Kern(buf, sfnt.GlyphIndex(a), sfnt.GlyphIndex(b), f.ppem, xfont.HintingNone)
	if err != nil {
		return 0
	}
	return units(k)
}

// Scale converts a length in font units to points at the given size.
func (f *Font) Scale(v int, size float64) float64 {
	return float64(v) * size / float64(f.UnitsPerEm)
}

// Width1000 is the advance of g in PDF glyph space (1/1000 em).
func (f *Font) Width1000(g GlyphID) int {
	return int(float64(f.Advance(g))*1000/float64(f.UnitsPerEm) + 0.5)
}

// To1000 converts font units to PDF glyph space.
func (f *Font) To1000(v int) float64 {
	return float64(v) * 1000 / float64(f.UnitsPerEm)
}

// LineHeight is the natural distance between baselines at size.
func (f *Font) LineHeight(size float64) float64 {
	return f.Scale(f.Ascent-f.Descent+f.LineGap, size)
}

// Flags returns the font descriptor flags.
func (f *Font) Flags() int {
	flags := 4 // symbolic: glyphs are addressed by id, not a standard encoding
	if f.ItalicAngle != 0 {
		flags |= 64
	}
	return flags
}
