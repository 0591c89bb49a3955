package fonts

import (
	"bytes"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// ShapedGlyph is one positioned glyph produced by Shape. Advances and
// offsets are in font units; Cluster is the index of the first rune of the
// input that produced the glyph. Vertical offsets from the shaper are
// dropped since lines are drawn on a single baseline.
type ShapedGlyph struct {
	ID       GlyphID
	Cluster  int
	XAdvance int
	XOffset  int
}

type shaper struct {
	mu   sync.Mutex
	face *gofont.Face
	hb   shaping.HarfbuzzShaper
}

// Shape runs HarfBuzz over text. lang is a BCP 47 tag and may be empty.
// Glyphs come back in logical order even for right-to-left scripts.
func (f *Font) Shape(text []rune, lang string) ([]ShapedGlyph, error) {
	f.shapeOnce.Do(func() {
		face, err := gofont.ParseTTF(bytes.NewReader(f.Data))
		if err != nil {
			f.shapeErr = err
			return
		}
		f.shaper = &shaper{face: face}
	})
	if f.shapeErr != nil {
		return nil, f.shapeErr
	}
	if len(text) == 0 {
		return nil, nil
	}
	script := DetectScript(text)
	dir := scriptDirection(script)
	lg := language.DefaultLanguage()
	if lang != "" {
		lg = language.NewLanguage(lang)
	}
	input := shaping.Input{
		Text:      text,
		RunStart:  0,
		RunEnd:    len(text),
		Direction: dir,
		Face:      f.shaper.face,
		// One em equals UnitsPerEm so outputs are in font units.
		Size:     fixed.Int26_6(f.UnitsPerEm << 6),
		Script:   script,
		Language: lg,
	}

	f.shaper.mu.Lock()
	output := f.shaper.hb.Shape(input)
	f.shaper.mu.Unlock()

	result := make([]ShapedGlyph, 0, len(output.Glyphs))
	for _, g := range output.Glyphs {
		result = append(result, ShapedGlyph{
			ID:       GlyphID(g.GlyphID),
			Cluster:  g.ClusterIndex,
			XAdvance: units(g.XAdvance),
			XOffset:  units(g.XOffset),
		})
	}
	if dir == di.DirectionRTL {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	return result, nil
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

// DetectScript returns the script with the most runes in text, Latin when
// no rune has a recognised script. Ties keep the script seen first.
func DetectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	bestScript := language.Latin

	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			bestScript = script
		}
	}
	return bestScript
}

var scriptTables = []struct {
	table  *unicode.RangeTable
	script language.Script
}{
	{unicode.Arabic, language.Arabic},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Latin, language.Latin},
	{unicode.Cyrillic, language.Cyrillic},
	{unicode.Greek, language.Greek},
	{unicode.Thai, language.Thai},
	{unicode.Devanagari, language.Devanagari},
	{unicode.Bengali, language.Bengali},
	{unicode.Tamil, language.Tamil},
	{unicode.Han, language.Han},
	{unicode.Hiragana, language.Hiragana},
	{unicode.Katakana, language.Katakana},
	{unicode.Hangul, language.Hangul},
}

func scriptFromRune(r rune) language.Script {
	for _, st := range scriptTables {
		if unicode.Is(st.table, r) {
			return st.script
		}
	}
	return language.Unknown
}
