// Package writer owns the low-level PDF object table: it hands out object
// numbers, holds the objects assigned to them and serializes the result with
// a classic cross-reference table.
package writer

import (
	"compress/zlib"
	"errors"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF17 PDFVersion = "1.7"
)

type ContentFilter int

const (
	FilterNone ContentFilter = iota
	FilterFlate
)

// Config controls serialization. The zero value writes PDF 1.7 with
// uncompressed streams.
type Config struct {
	Version       PDFVersion
	Compression   int
	ContentFilter ContentFilter
}

// DefaultConfig compresses every stream that is not already encoded.
func DefaultConfig() Config {
	return Config{Version: PDF17, Compression: zlib.BestCompression, ContentFilter: FilterFlate}
}

var (
	ErrUnallocated     = errors.New("object number was never allocated")
	ErrObjectRedefined = errors.New("object already defined")
	ErrUndefinedObject = errors.New("allocated object was never defined")
	ErrNoRoot          = errors.New("document has no catalog")
)
