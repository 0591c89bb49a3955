// Package resources deduplicates the fonts and images a conversion uses.
//
// A Catalog hands out sequential identifiers in first-reference order and
// loads each resource at most once. Catalogs belong to a single conversion
// and are not safe for concurrent use.
package resources

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/fonts"
	"github.com/wudi/docpdf/images"
	"github.com/wudi/docpdf/ir/raw"
	"github.com/wudi/docpdf/observability"
)

type Category string

const (
	CategoryFont  Category = "Font"
	CategoryImage Category = "XObject"
)

// Key identifies resource bytes: "file:" plus a cleaned path, or "blake2b:"
// plus the hex digest of inline data.
type Key string

func FileKey(path string) Key { return Key("file:" + filepath.Clean(path)) }

func DataKey(data []byte) Key {
	sum := blake2b.Sum256(data)
	return Key("blake2b:" + hex.EncodeToString(sum[:]))
}

// KeyFor derives the key of a declared source. Paths win over inline data.
func KeyFor(src document.Source) Key {
	if src.Path != "" {
		return FileKey(src.Path)
	}
	return DataKey(src.Data)
}

var (
	ErrUnknownKey      = errors.New("resource key not registered")
	ErrUnknownResource = errors.New("resource id not in catalog")
	ErrAlreadyEmbedded = errors.New("resource already embedded")
)

// LoadError reports a resource that could not be read or decoded.
type LoadError struct {
	Category Category
	Key      Key
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s %s: %v", strings.ToLower(string(e.Category)), e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader produces parsed resources for keys.
type Loader interface {
	LoadFont(key Key) (*fonts.Font, error)
	LoadImage(key Key) (*images.Image, error)
}

// SourceLoader loads registered sources from disk or from inline bytes.
type SourceLoader struct {
	Images  images.Options
	sources map[Key]document.Source
}

func NewSourceLoader() *SourceLoader {
	return &SourceLoader{sources: make(map[Key]document.Source)}
}

// Register makes src loadable and returns its key.
func (l *SourceLoader) Register(src document.Source) Key {
	key := KeyFor(src)
	if _, ok := l.sources[key]; !ok {
		l.sources[key] = src
	}
	return key
}

// RegisterDocument registers every font and image declaration of doc.
func (l *SourceLoader) RegisterDocument(doc *document.Document) {
	for _, f := range doc.Fonts {
		l.Register(f.Source)
	}
	for _, img := range doc.Images {
		l.Register(img.Source)
	}
}

func (l *SourceLoader) bytes(key Key) ([]byte, error) {
	src, ok := l.sources[key]
	if !ok {
		return nil, ErrUnknownKey
	}
	if src.Path != "" {
		return os.ReadFile(src.Path)
	}
	return src.Data, nil
}

func (l *SourceLoader) LoadFont(key Key) (*fonts.Font, error) {
	data, err := l.bytes(key)
	if err != nil {
		return nil, err
	}
	return fonts.Parse(data)
}

func (l *SourceLoader) LoadImage(key Key) (*images.Image, error) {
	data, err := l.bytes(key)
	if err != nil {
		return nil, err
	}
	return images.Decode(data, l.Images)
}

// FontID and ImageID start at 1; the zero value never names a resource.
type FontID int
type ImageID int

// ResourceName is the name the font has in page resource dictionaries.
func (id FontID) ResourceName() string  { return fmt.Sprintf("F%d", id) }
func (id ImageID) ResourceName() string { return fmt.Sprintf("Im%d", id) }

type FontEntry struct {
	ID       FontID
	Key      Key
	Font     *fonts.Font
	Glyphs   map[fonts.GlyphID][]rune
	Embedded bool
	Ref      raw.ObjectRef
}

// UsedGlyphs returns the glyphs recorded with UseGlyph in ascending order.
func (e *FontEntry) UsedGlyphs() []fonts.GlyphID {
	out := make([]fonts.GlyphID, 0, len(e.Glyphs))
	for g := range e.Glyphs {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type ImageEntry struct {
	ID       ImageID
	Key      Key
	Image    *images.Image
	Embedded bool
	Ref      raw.ObjectRef
}

type Option func(*Catalog)

func WithLogger(l observability.Logger) Option {
	return func(c *Catalog) { c.log = observability.OrNop(l) }
}

type Catalog struct {
	loader  Loader
	log     observability.Logger
	fonts   []*FontEntry
	images  []*ImageEntry
	fontIx  map[Key]FontID
	imageIx map[Key]ImageID
}

func NewCatalog(loader Loader, opts ...Option) *Catalog {
	c := &Catalog{
		loader:  loader,
		log:     observability.NopLogger{},
		fontIx:  make(map[Key]FontID),
		imageIx: make(map[Key]ImageID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InternFont returns the id of the font under key, loading it on first use.
// Failed loads are not cached.
func (c *Catalog) InternFont(key Key) (FontID, error) {
	if id, ok := c.fontIx[key]; ok {
		return id, nil
	}
	f, err := c.loader.LoadFont(key)
	if err != nil {
		return 0, &LoadError{Category: CategoryFont, Key: key, Err: err}
	}
	id := FontID(len(c.fonts) + 1)
	c.fonts = append(c.fonts, &FontEntry{ID: id, Key: key, Font: f, Glyphs: make(map[fonts.GlyphID][]rune)})
	c.fontIx[key] = id
	c.log.Debug("font interned", observability.String("key", string(key)), observability.Int("id", int(id)),
		observability.String("postscript_name", f.PostScriptName))
	return id, nil
}

// InternImage returns the id of the image under key, decoding it on first use.
func (c *Catalog) InternImage(key Key) (ImageID, error) {
	if id, ok := c.imageIx[key]; ok {
		return id, nil
	}
	img, err := c.loader.LoadImage(key)
	if err != nil {
		return 0, &LoadError{Category: CategoryImage, Key: key, Err: err}
	}
	id := ImageID(len(c.images) + 1)
	c.images = append(c.images, &ImageEntry{ID: id, Key: key, Image: img})
	c.imageIx[key] = id
	c.log.Debug("image interned", observability.String("key", string(key)), observability.Int("id", int(id)),
		observability.Int("width", img.Width), observability.Int("height", img.Height))
	return id, nil
}

func (c *Catalog) Font(id FontID) (*FontEntry, bool) {
	if id < 1 || int(id) > len(c.fonts) {
		return nil, false
	}
	return c.fonts[id-1], true
}

func (c *Catalog) Image(id ImageID) (*ImageEntry, bool) {
	if id < 1 || int(id) > len(c.images) {
		return nil, false
	}
	return c.images[id-1], true
}

// Fonts returns the entries in id order.
func (c *Catalog) Fonts() []*FontEntry { return c.fonts }

// Images returns the entries in id order.
func (c *Catalog) Images() []*ImageEntry { return c.images }

// UseGlyph records that gid is drawn for runes. The first mapping recorded
// for a glyph is kept.
func (c *Catalog) UseGlyph(id FontID, gid fonts.GlyphID, runes []rune) error {
	e, ok := c.Font(id)
	if !ok {
		return fmt.Errorf("font %d: %w", id, ErrUnknownResource)
	}
	if _, seen := e.Glyphs[gid]; !seen {
		e.Glyphs[gid] = append([]rune(nil), runes...)
	}
	return nil
}

// MarkFontEmbedded records the object holding the font. A second call for
// the same id fails with ErrAlreadyEmbedded.
func (c *Catalog) MarkFontEmbedded(id FontID, ref raw.ObjectRef) error {
	e, ok := c.Font(id)
	if !ok {
		return fmt.Errorf("font %d: %w", id, ErrUnknownResource)
	}
	if e.Embedded {
		return fmt.Errorf("font %d: %w", id, ErrAlreadyEmbedded)
	}
	e.Embedded, e.Ref = true, ref
	return nil
}

func (c *Catalog) MarkImageEmbedded(id ImageID, ref raw.ObjectRef) error {
	e, ok := c.Image(id)
	if !ok {
		return fmt.Errorf("image %d: %w", id, ErrUnknownResource)
	}
	if e.Embedded {
		return fmt.Errorf("image %d: %w", id, ErrAlreadyEmbedded)
	}
	e.Embedded, e.Ref = true, ref
	return nil
}
