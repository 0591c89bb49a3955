package fonts

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

var ErrNotTrueType = errors.New("font program has no glyf table")

// subsetTables are copied from the source font. GSUB and GPOS are dropped:
// glyph ids in content streams are final once layout has run.
var subsetTables = []string{"OS/2", "cmap", "cvt ", "fpgm", "gasp", "head", "hhea", "name", "post", "prep"}

// Subset returns a TrueType font program containing only the outlines of
// keep (plus glyph 0 and every component of a kept composite glyph). Glyph
// ids are preserved so Identity CID-to-GID mapping stays valid; dropped
// glyphs become empty and trailing unused glyphs are cut off.
func Subset(data []byte, keep map[GlyphID]bool) ([]byte, error) {
	dir, err := readTableDirectory(data)
	if err != nil {
		return nil, err
	}
	for _, tag := range []string{"glyf", "loca", "head", "hhea", "hmtx", "maxp"} {
		if _, ok := dir[tag]; !ok {
			return nil, fmt.Errorf("subset: missing %q: %w", tag, ErrNotTrueType)
		}
	}
	head, hhea, maxp := dir["head"], dir["hhea"], dir["maxp"]
	if len(head) < 54 || len(hhea) < 36 || len(maxp) < 6 {
		return nil, fmt.Errorf("subset: truncated header tables")
	}
	longLoca := int16(binary.BigEndian.Uint16(head[50:52])) == 1
	numGlyphs := int(binary.BigEndian.Uint16(maxp[4:6]))

	g := glyphTable{glyf: dir["glyf"], loca: dir["loca"], long: longLoca, numGlyphs: numGlyphs}
	used := g.closure(keep)
	last := 0
	for gid := range used {
		if gid > last {
			last = gid
		}
	}
	n := last + 1

	glyf, loca := g.rebuild(used, n)
	hmtx, err := rebuildHmtx(dir["hmtx"], int(binary.BigEndian.Uint16(hhea[34:36])), n)
	if err != nil {
		return nil, err
	}

	out := map[string][]byte{"glyf": glyf, "loca": loca, "hmtx": hmtx}
	for _, tag := range subsetTables {
		if t, ok := dir[tag]; ok {
			out[tag] = append([]byte(nil), t...)
		}
	}
	out["maxp"] = append([]byte(nil), maxp...)
	binary.BigEndian.PutUint16(out["maxp"][4:], uint16(n))
	binary.BigEndian.PutUint16(out["hhea"][34:], uint16(n))
	binary.BigEndian.PutUint16(out["head"][50:], 1)
	return writeFont(out), nil
}

func readTableDirectory(data []byte) (map[string][]byte, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("subset: invalid font header")
	}
	numTables := int(binary.BigEndian.Uint16(data[4:6]))
	dir := make(map[string][]byte, numTables)
	for i := 0; i < numTables; i++ {
		rec := 12 + 16*i
		if rec+16 > len(data) {
			return nil, fmt.Errorf("subset: table directory truncated")
		}
		tag := string(data[rec : rec+4])
		off := uint64(binary.BigEndian.Uint32(data[rec+8:]))
		length := uint64(binary.BigEndian.Uint32(data[rec+12:]))
		if off+length > uint64(len(data)) {
			return nil, fmt.Errorf("subset: table %q out of bounds", tag)
		}
		dir[tag] = data[off : off+length]
	}
	return dir, nil
}

type glyphTable struct {
	glyf, loca []byte
	long       bool
	numGlyphs  int
}

// span returns the byte range of gid inside glyf, or ok=false when the glyph
// is empty or the tables are inconsistent.
func (g glyphTable) span(gid int) (start, end uint32, ok bool) {
	if gid < 0 || gid >= g.numGlyphs {
		return 0, 0, false
	}
	if g.long {
		if (gid+2)*4 > len(g.loca) {
			return 0, 0, false
		}
		start = binary.BigEndian.Uint32(g.loca[gid*4:])
		end = binary.BigEndian.Uint32(g.loca[gid*4+4:])
	} else {
		if (gid+2)*2 > len(g.loca) {
			return 0, 0, false
		}
		start = uint32(binary.BigEndian.Uint16(g.loca[gid*2:])) * 2
		end = uint32(binary.BigEndian.Uint16(g.loca[gid*2+2:])) * 2
	}
	if start >= end || end > uint32(len(g.glyf)) {
		return 0, 0, false
	}
	return start, end, true
}

// closure adds glyph 0 and the components of composite glyphs to keep.
func (g glyphTable) closure(keep map[GlyphID]bool) map[int]bool {
	used := map[int]bool{0: true}
	queue := []int{0}
	for gid := range keep {
		if int(gid) < g.numGlyphs && !used[int(gid)] {
			used[int(gid)] = true
			queue = append(queue, int(gid))
		}
	}
	for len(queue) > 0 {
		gid := queue[0]
		queue = queue[1:]
		start, end, ok := g.span(gid)
		if !ok || end-start < 10 {
			continue
		}
		glyph := g.glyf[start:end]
		if int16(binary.BigEndian.Uint16(glyph)) >= 0 {
			continue
		}
		for off := 10; off+4 <= len(glyph); {
			flags := binary.BigEndian.Uint16(glyph[off:])
			component := int(binary.BigEndian.Uint16(glyph[off+2:]))
			if component < g.numGlyphs && !used[component] {
				used[component] = true
				queue = append(queue, component)
			}
			off += 4
			if flags&0x0001 != 0 { // ARG_1_AND_2_ARE_WORDS
				off += 4
			} else {
				off += 2
			}
			switch {
			case flags&0x0008 != 0: // WE_HAVE_A_SCALE
				off += 2
			case flags&0x0040 != 0: // WE_HAVE_AN_X_AND_Y_SCALE
				off += 4
			case flags&0x0080 != 0: // WE_HAVE_A_TWO_BY_TWO
				off += 8
			}
			if flags&0x0020 == 0 { // MORE_COMPONENTS
				break
			}
		}
	}
	return used
}

// rebuild writes glyf and a long-format loca for the first n glyphs.
func (g glyphTable) rebuild(used map[int]bool, n int) (glyf, loca []byte) {
	var gbuf bytes.Buffer
	loca = make([]byte, 4*(n+1))
	for gid := 0; gid < n; gid++ {
		binary.BigEndian.PutUint32(loca[gid*4:], uint32(gbuf.Len()))
		if !used[gid] {
			continue
		}
		if start, end, ok := g.span(gid); ok {
			gbuf.Write(g.glyf[start:end])
			if gbuf.Len()%2 == 1 {
				gbuf.WriteByte(0)
			}
		}
	}
	binary.BigEndian.PutUint32(loca[n*4:], uint32(gbuf.Len()))
	return gbuf.Bytes(), loca
}

// rebuildHmtx writes one full metric per glyph for the first n glyphs.
func rebuildHmtx(hmtx []byte, numHMetrics, n int) ([]byte, error) {
	if numHMetrics == 0 || len(hmtx) < numHMetrics*4 {
		return nil, fmt.Errorf("subset: truncated hmtx")
	}
	out := make([]byte, 4*n)
	for gid := 0; gid < n; gid++ {
		var adv, lsb uint16
		if gid < numHMetrics {
			adv = binary.BigEndian.Uint16(hmtx[gid*4:])
			lsb = binary.BigEndian.Uint16(hmtx[gid*4+2:])
		} else {
			adv = binary.BigEndian.Uint16(hmtx[(numHMetrics-1)*4:])
			if off := numHMetrics*4 + (gid-numHMetrics)*2; off+2 <= len(hmtx) {
				lsb = binary.BigEndian.Uint16(hmtx[off:])
			}
		}
		binary.BigEndian.PutUint16(out[gid*4:], adv)
		binary.BigEndian.PutUint16(out[gid*4+2:], lsb)
	}
	return out, nil
}

// writeFont assembles an sfnt file with tables in tag order and fixes the
// head checksum adjustment.
func writeFont(tables map[string][]byte) []byte {
	tags := make([]string, 0, len(tables))
	for tag := range tables {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	numTables := len(tags)
	entrySelector := 0
	for 1<<(entrySelector+1) <= numTables {
		entrySelector++
	}
	searchRange := (1 << entrySelector) * 16

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x01, 0x00, 0x00})
	for _, v := range []int{numTables, searchRange, entrySelector, numTables*16 - searchRange} {
		binary.Write(&buf, binary.BigEndian, uint16(v))
	}

	if head, ok := tables["head"]; ok {
		binary.BigEndian.PutUint32(head[8:], 0)
	}
	offset := 12 + 16*numTables
	headAt := -1
	for _, tag := range tags {
		t := tables[tag]
		if tag == "head" {
			headAt = offset
		}
		buf.WriteString(tag)
		binary.Write(&buf, binary.BigEndian, checksum(t))
		binary.Write(&buf, binary.BigEndian, uint32(offset))
		binary.Write(&buf, binary.BigEndian, uint32(len(t)))
		offset += (len(t) + 3) &^ 3
	}
	for _, tag := range tags {
		t := tables[tag]
		buf.Write(t)
		buf.Write(make([]byte, (4-len(t)%4)%4))
	}
	out := buf.Bytes()
	if headAt >= 0 {
		binary.BigEndian.PutUint32(out[headAt+8:], 0xB1B0AFBA-checksum(out))
	}
	return out
}

func checksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		var word [4]byte
		copy(word[:], data[i:])
		sum += binary.BigEndian.Uint32(word[:])
	}
	return sum
}
