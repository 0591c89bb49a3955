package writer

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"

	"github.com/wudi/docpdf/ir/raw"
)

func (c Config) version() string {
	if c.Version == "" {
		return string(PDF17)
	}
	return string(c.Version)
}

func (c Config) flate() bool {
	return c.ContentFilter == FilterFlate || (c.ContentFilter == FilterNone && c.Compression != 0)
}

// fileID returns the trailer /ID pair: a permanent half that only depends
// on the identifier (or the body when there is none) and an instance half
// that follows the body bytes.
func fileID(identifier, body []byte) [2][]byte {
	sum := sha256.Sum256(body)
	instance := sum[:16]
	if len(identifier) == 0 {
		return [2][]byte{instance, instance}
	}
	perm := sha256.Sum256(identifier)
	return [2][]byte{perm[:16], instance}
}

// deflate wraps data in the zlib format FlateDecode expects: header,
// deflate body, Adler-32 trailer.
func deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatNumber writes v rounded to five decimals, without exponent. NaN
// and infinities become 0.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	v = math.Round(v*1e5) / 1e5
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// appendObject writes the direct form of o.
func appendObject(b *bytes.Buffer, o raw.Object) {
	switch v := o.(type) {
	case raw.NameObj:
		AppendName(b, v.Val)
	case raw.NumberObj:
		if v.IsInt {
			b.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			b.WriteString(FormatNumber(v.F))
		}
	case raw.StringObj:
		if v.Hex {
			AppendHexString(b, v.Bytes)
		} else {
			b.Write(EscapeLiteralString(v.Bytes))
		}
	case *raw.ArrayObj:
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			appendObject(b, it)
		}
		b.WriteByte(']')
	case *raw.DictObj:
		b.WriteString("<<")
		for i, k := range v.Keys() {
			if i > 0 {
				b.WriteByte(' ')
			}
			AppendName(b, k)
			b.WriteByte(' ')
			appendObject(b, v.KV[k])
		}
		b.WriteString(">>")
	case *raw.StreamObj:
		appendObject(b, v.Dict)
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
	case raw.RefObj:
		b.WriteString(v.R.String())
	default:
		b.WriteString("null")
	}
}

func serializePrimitive(o raw.Object) []byte {
	var b bytes.Buffer
	appendObject(&b, o)
	return b.Bytes()
}

// AppendHexString writes data as <HEX> with upper-case digits.
func AppendHexString(b *bytes.Buffer, data []byte) {
	b.WriteByte('<')
	enc := make([]byte, hex.EncodedLen(len(data)))
	hex.Encode(enc, data)
	b.Write(bytes.ToUpper(enc))
	b.WriteByte('>')
}

// EscapeLiteralString writes data as a parenthesized string, escaping
// delimiters and writing bytes outside printable ASCII in octal.
func EscapeLiteralString(data []byte) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, '(')
	for _, ch := range data {
		switch ch {
		case '\\', '(', ')':
			out = append(out, '\\', ch)
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		case '\t':
			out = append(out, '\\', 't')
		case '\b':
			out = append(out, '\\', 'b')
		case '\f':
			out = append(out, '\\', 'f')
		default:
			if ch < 0x20 || ch >= 0x7f {
				out = append(out, '\\', '0'+ch>>6, '0'+(ch>>3)&7, '0'+ch&7)
			} else {
				out = append(out, ch)
			}
		}
	}
	return append(out, ')')
}

// AppendName writes /name, escaping every byte outside the regular
// characters as #XX.
func AppendName(b *bytes.Buffer, name string) {
	const digits = "0123456789ABCDEF"
	b.WriteByte('/')
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if regularNameByte(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('#')
		b.WriteByte(digits[ch>>4])
		b.WriteByte(digits[ch&15])
	}
}

func regularNameByte(ch byte) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return true
	}
	return ch == '-' || ch == '_' || ch == '.' || ch == '+'
}
