package assembler

import (
	"crypto/sha256"
	"errors"

	"github.com/wudi/docpdf/fonts"
	"github.com/wudi/docpdf/ir/raw"
	"github.com/wudi/docpdf/observability"
	"github.com/wudi/docpdf/resources"
)

func (a *assembler) embedFonts() error {
	for _, e := range a.cat.Fonts() {
		if !a.usedFonts[e.ID] {
			a.log.Debug("font not drawn, skipping", observability.String("key", string(e.Key)))
			continue
		}
		if e.Embedded {
			return &InvariantError{Element: -1, Msg: "font " + e.ID.ResourceName() + " embedded twice", Err: resources.ErrAlreadyEmbedded}
		}
		ref := a.embedFont(e)
		if err := a.cat.MarkFontEmbedded(e.ID, ref); err != nil {
			return &InvariantError{Element: -1, Msg: "mark font embedded", Err: err}
		}
	}
	return nil
}

// embedFont writes a Type0 font with an Identity-H encoding so glyph ids
// can be shown directly, and returns the reference of the Type0 dictionary.
func (a *assembler) embedFont(e *resources.FontEntry) raw.ObjectRef {
	f := e.Font
	used := e.UsedGlyphs()
	data := f.Data
	name := f.PostScriptName
	if a.opts.SubsetFonts && f.Outlines == fonts.OutlinesTrueType {
		keep := make(map[fonts.GlyphID]bool, len(used)+1)
		keep[0] = true
		for _, g := range used {
			keep[g] = true
		}
		sub, err := fonts.Subset(f.Data, keep)
		switch {
		case err == nil:
			data = sub
			name = subsetTag(used) + "+" + name
		case errors.Is(err, fonts.ErrNotTrueType):
			a.log.Debug("font not subsettable", observability.String("font", name))
		default:
			a.log.Warn("font subsetting failed, embedding the whole font",
				observability.String("font", name), observability.Error("error", err))
		}
	}

	fileDict := raw.Dict().Put("Length1", raw.NumberInt(int64(len(data))))
	fileKey, cidSubtype := "FontFile2", "CIDFontType2"
	if f.Outlines == fonts.OutlinesCFF {
		fileDict = raw.Dict().Put("Subtype", raw.NameLiteral("OpenType"))
		fileKey, cidSubtype = "FontFile3", "CIDFontType0"
	}
	fileRef := a.doc.Add(raw.NewStream(fileDict, data))

	bbox := raw.NewArray()
	for _, v := range f.BBox {
		bbox.Append(raw.Number(round1000(f.To1000(v))))
	}
	descriptor := raw.Dict().
		Put("Type", raw.NameLiteral("FontDescriptor")).
		Put("FontName", raw.NameLiteral(name)).
		Put("Flags", raw.NumberInt(int64(f.Flags()))).
		Put("ItalicAngle", raw.Number(f.ItalicAngle)).
		Put("Ascent", raw.Number(round1000(f.To1000(f.Ascent)))).
		Put("Descent", raw.Number(round1000(f.To1000(f.Descent)))).
		Put("CapHeight", raw.Number(round1000(f.To1000(f.CapHeight)))).
		Put("StemV", raw.NumberInt(80)).
		Put("FontBBox", bbox).
		Put(fileKey, raw.RefTo(fileRef))
	descRef := a.doc.Add(descriptor)

	cid := raw.Dict().
		Put("Type", raw.NameLiteral("Font")).
		Put("Subtype", raw.NameLiteral(cidSubtype)).
		Put("BaseFont", raw.NameLiteral(name)).
		Put("CIDSystemInfo", raw.Dict().
			Put("Registry", raw.Str([]byte("Adobe"))).
			Put("Ordering", raw.Str([]byte("Identity"))).
			Put("Supplement", raw.NumberInt(0))).
		Put("DW", raw.NumberInt(1000)).
		Put("W", widthArray(f, used)).
		Put("FontDescriptor", raw.RefTo(descRef))
	if cidSubtype == "CIDFontType2" {
		cid.Put("CIDToGIDMap", raw.NameLiteral("Identity"))
	}
	cidRef := a.doc.Add(cid)

	cmap := fonts.ToUnicodeCMap(name, e.Glyphs)
	cmapRef := a.doc.Add(raw.NewStream(nil, cmap))

	return a.doc.Add(raw.Dict().
		Put("Type", raw.NameLiteral("Font")).
		Put("Subtype", raw.NameLiteral("Type0")).
		Put("BaseFont", raw.NameLiteral(name)).
		Put("Encoding", raw.NameLiteral("Identity-H")).
		Put("DescendantFonts", raw.NewArray(raw.RefTo(cidRef))).
		Put("ToUnicode", raw.RefTo(cmapRef)))
}

// widthArray encodes the widths of used, which is sorted, as runs of
// consecutive glyph ids: [g [w w ...] g' [w ...]].
func widthArray(f *fonts.Font, used []fonts.GlyphID) *raw.ArrayObj {
	out := raw.NewArray()
	for i := 0; i < len(used); {
		j := i + 1
		for j < len(used) && used[j] == used[j-1]+1 {
			j++
		}
		ws := raw.NewArray()
		for _, g := range used[i:j] {
			ws.Append(raw.NumberInt(int64(f.Width1000(g))))
		}
		out.Append(raw.NumberInt(int64(used[i])))
		out.Append(ws)
		i = j
	}
	return out
}

func round1000(v float64) float64 {
	if v < 0 {
		return float64(int64(v - 0.5))
	}
	return float64(int64(v + 0.5))
}

// subsetTag derives the six-letter subset prefix from the glyph set so that
// equal subsets get equal names.
func subsetTag(used []fonts.GlyphID) string {
	h := sha256.New()
	for _, g := range used {
		h.Write([]byte{byte(g >> 8), byte(g)})
	}
	sum := h.Sum(nil)
	tag := make([]byte, 6)
	for i := range tag {
		tag[i] = 'A' + sum[i]%26
	}
	return string(tag)
}
