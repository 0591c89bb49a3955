package layout

import (
	"fmt"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/wudi/docpdf/coords"
	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/fonts"
	"github.com/wudi/docpdf/observability"
	"github.com/wudi/docpdf/resources"
)

// item is a glyph or a forced line break in a block's glyph stream.
type item struct {
	run     int
	glyph   Glyph
	kern    float64
	xOffset float64
	space   bool
	brk     bool
}

// runStyle is the resolved style of one run with its font loaded.
type runStyle struct {
	src        *document.ValidRun
	id         resources.FontID
	font       *fonts.Font
	lineHeight float64
	ascent     float64
}

func (e *Engine) layoutText(b *document.ValidBlock) error {
	styles := make([]runStyle, len(b.Runs))
	var items []item
	for i := range b.Runs {
		r := &b.Runs[i]
		key := resources.KeyFor(r.Font.Source)
		id, err := e.cat.InternFont(key)
		if err != nil {
			return &LayoutError{Kind: ErrResourceUnavailable, Block: b.Index, Key: key, Err: err}
		}
		entry, _ := e.cat.Font(id)
		f := entry.Font
		lh := f.LineHeight(r.Size)
		if r.LineHeight > 0 {
			lh = r.LineHeight * r.Size
		}
		styles[i] = runStyle{src: r, id: id, font: f, lineHeight: lh, ascent: f.Scale(f.Ascent, r.Size)}
		runItems, err := e.runItems(i, &styles[i])
		if err != nil {
			return &LayoutError{Kind: ErrResourceUnavailable, Block: b.Index, Key: key, Err: err}
		}
		items = append(items, runItems...)
	}
	return e.wrap(b, styles, items)
}

// runItems normalizes the run's text to NFC and maps it to glyphs.
func (e *Engine) runItems(ri int, st *runStyle) ([]item, error) {
	text := []rune(norm.NFC.String(st.src.Text))
	if !e.cfg.Shaping {
		items, missing := glyphItems(st.font, text, st.src.Size, st.src.Tracking)
		for i := range items {
			items[i].run = ri
		}
		e.warnMissing(st, missing)
		return items, nil
	}
	var items []item
	start := 0
	for i := 0; i <= len(text); i++ {
		if i < len(text) && text[i] != '\n' {
			continue
		}
		shaped, err := e.shapeSegment(ri, st, text[start:i])
		if err != nil {
			return nil, err
		}
		items = append(items, shaped...)
		if i < len(text) {
			items = append(items, item{run: ri, brk: true})
		}
		start = i + 1
	}
	return items, nil
}

func (e *Engine) shapeSegment(ri int, st *runStyle, seg []rune) ([]item, error) {
	clean := make([]rune, 0, len(seg))
	for _, r := range seg {
		if r == '\t' {
			r = ' '
		}
		if unicode.IsControl(r) {
			continue
		}
		clean = append(clean, r)
	}
	lang := ""
	if st.src.Language != language.Und {
		lang = st.src.Language.String()
	}
	glyphs, err := st.font.Shape(clean, lang)
	if err != nil {
		return nil, fmt.Errorf("shape: %w", err)
	}
	size := st.src.Size
	items := make([]item, 0, len(glyphs))
	for i, g := range glyphs {
		end := len(clean)
		for _, next := range glyphs[i+1:] {
			if next.Cluster > g.Cluster {
				end = next.Cluster
				break
			}
		}
		var runes []rune
		first := i == 0 || glyphs[i-1].Cluster != g.Cluster
		if first && g.Cluster < end && g.Cluster < len(clean) {
			runes = append(runes, clean[g.Cluster:end]...)
		}
		if g.ID == 0 {
			e.warnMissing(st, runes)
		}
		items = append(items, item{
			run:     ri,
			glyph:   Glyph{GID: g.ID, Runes: runes, Advance: st.font.Scale(g.XAdvance, size) + st.src.Tracking},
			xOffset: st.font.Scale(g.XOffset, size),
			space:   len(runes) == 1 && unicode.IsSpace(runes[0]),
		})
	}
	return items, nil
}

// glyphItems maps text rune by rune through the cmap, applying kerning
// between neighbours. Newlines become break items, tabs become spaces and
// other control characters are dropped. Runes without a glyph map to
// glyph 0 and are returned in missing.
func glyphItems(f *fonts.Font, text []rune, size, tracking float64) (items []item, missing []rune) {
	items = make([]item, 0, len(text))
	prev := -1
	for _, r := range text {
		if r == '\n' {
			items = append(items, item{brk: true})
			prev = -1
			continue
		}
		if r == '\t' {
			r = ' '
		}
		if unicode.IsControl(r) {
			continue
		}
		gid, ok := f.GlyphIndex(r)
		if !ok {
			missing = append(missing, r)
		}
		if prev >= 0 {
			items[prev].kern = f.Scale(f.Kern(items[prev].glyph.GID, gid), size)
		}
		items = append(items, item{
			glyph: Glyph{GID: gid, Runes: []rune{r}, Advance: f.Scale(f.Advance(gid), size) + tracking},
			space: unicode.IsSpace(r),
		})
		prev = len(items) - 1
	}
	return items, missing
}

// Shape positions text on a single line without normalization or wrapping.
// The returned width includes kerning and tracking. Runes the font cannot
// draw use glyph 0 and are listed in missing.
func Shape(f *fonts.Font, text string, size, tracking float64) (glyphs []Glyph, width float64, missing []rune) {
	items, missing := glyphItems(f, []rune(text), size, tracking)
	pen := 0.0
	for i, it := range items {
		if it.brk {
			continue
		}
		g := it.glyph
		g.X = pen
		pen += g.Advance
		if i < len(items)-1 {
			pen += it.kern
		}
		glyphs = append(glyphs, g)
	}
	return glyphs, pen, missing
}

func (e *Engine) warnMissing(st *runStyle, runes []rune) {
	for _, r := range runes {
		k := missingGlyph{font: st.id, r: r}
		if e.missing[k] {
			continue
		}
		e.missing[k] = true
		e.log.Warn("glyph missing from font, using .notdef",
			observability.String("font", st.font.PostScriptName),
			observability.String("rune", fmt.Sprintf("%U", r)))
	}
}

// wrap breaks items into lines and places them.
func (e *Engine) wrap(b *document.ValidBlock, styles []runStyle, items []item) error {
	maxW := e.content.W
	var line []item
	width := 0.0
	placed := false
	lastRun := 0

	flush := func() error {
		if err := e.placeLine(b, styles, line, lastRun); err != nil {
			return err
		}
		placed = true
		line, width = nil, 0
		return nil
	}
	measure := func(l []item) float64 {
		w := 0.0
		for i, it := range l {
			w += it.glyph.Advance
			if i < len(l)-1 && l[i+1].run == it.run {
				w += it.kern
			}
		}
		return w
	}

	for _, it := range items {
		lastRun = it.run
		if it.brk {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if it.glyph.Advance > maxW+eps {
			e.ensurePage()
			return e.tooLarge(b.Index, fmt.Sprintf("glyph %q is %g wide, content width is %g",
				string(it.glyph.Runes), it.glyph.Advance, maxW))
		}
		add := it.glyph.Advance
		if n := len(line); n > 0 && line[n-1].run == it.run {
			add += line[n-1].kern
		}
		if width+add <= maxW+eps {
			line = append(line, it)
			width += add
			continue
		}
		if e.cfg.Wrap == WrapWord {
			if it.space {
				if err := flush(); err != nil {
					return err
				}
				continue
			}
			if k := lastSpace(line); k >= 0 && k < len(line)-1 {
				rest := append([]item(nil), line[k+1:]...)
				line = line[:k+1]
				if err := flush(); err != nil {
					return err
				}
				line = rest
				width = measure(line)
				add = it.glyph.Advance
				if n := len(line); n > 0 && line[n-1].run == it.run {
					add += line[n-1].kern
				}
				if width+add <= maxW+eps {
					line = append(line, it)
					width += add
					continue
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}
		line = append(line, it)
		width = it.glyph.Advance
	}
	if len(line) > 0 || !placed {
		return flush()
	}
	return nil
}

func lastSpace(line []item) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].space {
			return i
		}
	}
	return -1
}

// placeLine puts one line at the cursor. An empty line only advances the
// cursor by the line height of run emptyRun.
func (e *Engine) placeLine(b *document.ValidBlock, styles []runStyle, line []item, emptyRun int) error {
	height, baseline := 0.0, 0.0
	if len(line) == 0 {
		height, baseline = styles[emptyRun].lineHeight, styles[emptyRun].ascent
	}
	for _, it := range line {
		st := &styles[it.run]
		height = max(height, st.lineHeight)
		baseline = max(baseline, st.ascent)
	}
	if err := e.checkPageBreak(height, b.Index); err != nil {
		return err
	}

	pen := e.content.X
	var cur *GlyphRun
	for i, it := range line {
		st := &styles[it.run]
		if cur == nil || cur.RunIndex != st.src.Index {
			cur = &GlyphRun{
				BlockIndex: b.Index,
				RunIndex:   st.src.Index,
				Font:       st.id,
				Size:       st.src.Size,
				Color:      st.src.Color,
				Tracking:   st.src.Tracking,
				Origin:     coords.Point{X: pen, Y: e.cursorY},
				Baseline:   baseline,
				LineHeight: height,
				Link:       st.src.Link,
			}
			e.place(b, cur)
		}
		g := it.glyph
		g.X = pen - cur.Origin.X + it.xOffset
		cur.Glyphs = append(cur.Glyphs, g)
		if err := e.cat.UseGlyph(st.id, g.GID, g.Runes); err != nil {
			return fmt.Errorf("record glyph: %w", err)
		}
		pen += g.Advance
		if i < len(line)-1 && line[i+1].run == it.run {
			pen += it.kern
		}
	}
	e.cursorY += height
	e.pageUsed = true
	return nil
}
