package assembler

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/ir/raw"
)

func producer(m document.Metadata) string {
	if m.Producer != "" {
		return m.Producer
	}
	return DefaultProducer
}

// infoDict builds the document information dictionary. Dates appear only
// when the caller supplied them.
func infoDict(m document.Metadata) *raw.DictObj {
	info := raw.Dict().
		Put("Producer", textString(producer(m))).
		Put("Trapped", raw.NameLiteral("False"))
	for key, val := range map[string]string{
		"Title":    m.Title,
		"Author":   m.Author,
		"Subject":  m.Subject,
		"Creator":  m.Creator,
		"Keywords": strings.Join(m.Keywords, ", "),
	} {
		if val != "" {
			info.Put(key, textString(val))
		}
	}
	if m.Created != nil {
		info.Put("CreationDate", raw.Str([]byte(pdfDate(*m.Created))))
	}
	if m.Modified != nil {
		info.Put("ModDate", raw.Str([]byte(pdfDate(*m.Modified))))
	}
	return info
}

// pdfDate formats t as D:YYYYMMDDHHmmSS+HH'mm'.
func pdfDate(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("D:%s%c%02d'%02d'", t.Format("20060102150405"), sign, offset/3600, offset%3600/60)
}

// textString encodes s as a PDF text string: literal when it is ASCII,
// UTF-16BE with a byte order mark otherwise.
func textString(s string) raw.StringObj {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return raw.Str([]byte(s))
	}
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2, 2+2*len(units))
	b[0], b[1] = 0xFE, 0xFF
	for _, u := range units {
		b = append(b, byte(u>>8), byte(u))
	}
	return raw.HexStr(b)
}
