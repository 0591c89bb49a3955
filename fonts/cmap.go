package fonts

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
)

// ToUnicodeCMap builds the /ToUnicode stream for an Identity-H font so that
// text extracted from the PDF maps back to the runes that produced each
// glyph. bfchar blocks hold at most 100 entries and never span a change of
// the high byte of the glyph id.
func ToUnicodeCMap(name string, glyphs map[GlyphID][]rune) []byte {
	gids := make([]int, 0, len(glyphs))
	for gid, runes := range glyphs {
		if len(runes) > 0 {
			gids = append(gids, int(gid))
		}
	}
	sort.Ints(gids)

	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n")
	buf.WriteString("12 dict begin\n")
	buf.WriteString("begincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	fmt.Fprintf(&buf, "/CMapName /%s-UTF16 def\n", strings.ReplaceAll(name, " ", ""))
	buf.WriteString("/CMapType 2 def\n")
	buf.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	for i := 0; i < len(gids); {
		j := i + 1
		for j < len(gids) && j-i < 100 && gids[j]>>8 == gids[i]>>8 {
			j++
		}
		fmt.Fprintf(&buf, "%d beginbfchar\n", j-i)
		for _, gid := range gids[i:j] {
			fmt.Fprintf(&buf, "<%04X> <%s>\n", gid, utf16Hex(glyphs[GlyphID(gid)]))
		}
		buf.WriteString("endbfchar\n")
		i = j
	}
	buf.WriteString("endcmap\n")
	buf.WriteString("CMapName currentdict /CMap defineresource pop\n")
	buf.WriteString("end\nend\n")
	return buf.Bytes()
}

func utf16Hex(runes []rune) string {
	var b strings.Builder
	for _, u := range utf16.Encode(runes) {
		fmt.Fprintf(&b, "%04X", u)
	}
	return b.String()
}
