// Package document is the in-memory description of a document to convert:
// page geometry, styled text and image blocks, and the fonts and images
// they reference. Validate turns a Document into a Validated one with every
// length in points and every style resolved.
package document

import "time"

// Unit is the length unit used for every geometric value of a Document.
type Unit string

const (
	UnitPoint      Unit = "pt"
	UnitMillimeter Unit = "mm"
	UnitCentimeter Unit = "cm"
	UnitInch       Unit = "in"
)

// Points returns the number of points in one u. The empty unit means points.
func (u Unit) Points() (float64, bool) {
	switch u {
	case "", UnitPoint:
		return 1, true
	case UnitMillimeter:
		return 72 / 25.4, true
	case UnitCentimeter:
		return 72 / 2.54, true
	case UnitInch:
		return 72, true
	}
	return 0, false
}

// PaperSize names a standard sheet. Its dimensions are in points.
type PaperSize string

const (
	PaperA3     PaperSize = "A3"
	PaperA4     PaperSize = "A4"
	PaperA5     PaperSize = "A5"
	PaperLetter PaperSize = "Letter"
	PaperLegal  PaperSize = "Legal"
)

var paperSizes = map[PaperSize][2]float64{
	PaperA3:     {841.89, 1190.55},
	PaperA4:     {595.28, 841.89},
	PaperA5:     {419.53, 595.28},
	PaperLetter: {612, 792},
	PaperLegal:  {612, 1008},
}

// Dimensions returns the width and height of p in points.
func (p PaperSize) Dimensions() (w, h float64, ok bool) {
	d, ok := paperSizes[p]
	return d[0], d[1], ok
}

type Metadata struct {
	Title      string     `json:"title,omitempty"`
	Author     string     `json:"author,omitempty"`
	Subject    string     `json:"subject,omitempty"`
	Keywords   []string   `json:"keywords,omitempty"`
	Creator    string     `json:"creator,omitempty"`
	Producer   string     `json:"producer,omitempty"`
	Language   string     `json:"lang,omitempty"`
	Identifier string     `json:"identifier,omitempty"`
	Created    *time.Time `json:"created,omitempty"`
	Modified   *time.Time `json:"modified,omitempty"`
}

type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Uniform returns margins of v on every side.
func Uniform(v float64) Margins { return Margins{Top: v, Right: v, Bottom: v, Left: v} }

// PageConfig describes every page of the document. Width and Height win over
// Size when both are given; Size is always in points.
type PageConfig struct {
	Size    PaperSize `json:"size,omitempty"`
	Width   float64   `json:"width,omitempty"`
	Height  float64   `json:"height,omitempty"`
	Margins Margins   `json:"margins"`
	Unit    Unit      `json:"unit,omitempty"`
}

// Style holds the defaults applied to runs that leave a field unset.
// LineHeight is a multiple of the font size; zero uses the font's own
// ascent, descent and line gap.
type Style struct {
	Font       string  `json:"font,omitempty"`
	Size       float64 `json:"size,omitempty"`
	Color      *Color  `json:"color,omitempty"`
	LineHeight float64 `json:"lineHeight,omitempty"`
	Tracking   float64 `json:"tracking,omitempty"`
}

// DefaultFontSize applies when neither the run nor the document style sets one.
const DefaultFontSize = 12

// Source locates resource bytes: a file path or inline data.
type Source struct {
	Path string `json:"path,omitempty"`
	Data []byte `json:"data,omitempty"`
}

// FontDecl declares a font under Name. Family and Style let runs select a
// face by family plus "normal", "bold", "italic" or "bold-italic".
type FontDecl struct {
	Name   string `json:"name"`
	Family string `json:"family,omitempty"`
	Style  string `json:"style,omitempty"`
	Source
}

type ImageDecl struct {
	Name string `json:"name"`
	Source
}

type BlockKind string

const (
	KindText  BlockKind = "text"
	KindImage BlockKind = "image"
)

// Block is one content block. Exactly one of Text and Image is set, matching
// Kind. Blocks without a Layer go to the default layer.
type Block struct {
	Kind       BlockKind   `json:"kind"`
	Text       *TextBlock  `json:"text,omitempty"`
	Image      *ImageBlock `json:"image,omitempty"`
	Layer      string      `json:"layer,omitempty"`
	SpaceAfter float64     `json:"spaceAfter,omitempty"`
}

type TextBlock struct {
	Runs []Run `json:"runs"`
}

// Run is styled text. Zero-valued fields inherit from the document Style.
// A run with no text must set Empty.
type Run struct {
	Text      string   `json:"text"`
	Empty     bool     `json:"empty,omitempty"`
	Font      string   `json:"font,omitempty"`
	FontStyle string   `json:"fontStyle,omitempty"`
	Size      float64  `json:"size,omitempty"`
	Color     *Color   `json:"color,omitempty"`
	Tracking  *float64 `json:"tracking,omitempty"`
	Language  string   `json:"lang,omitempty"`
	Link      string   `json:"link,omitempty"`
}

// ImageBlock places a declared image. A zero Width or Height is derived from
// the image's pixel size at 72 dpi, keeping the aspect ratio when the other
// dimension is given.
type ImageBlock struct {
	Image     string     `json:"image"`
	Width     float64    `json:"width,omitempty"`
	Height    float64    `json:"height,omitempty"`
	Transform *Transform `json:"transform,omitempty"`
}

// Transform is applied to the placed image around its top-left corner.
// Rotate is in degrees, counterclockwise as seen on the page. Zero scales
// mean 1.
type Transform struct {
	ScaleX     float64 `json:"scaleX,omitempty"`
	ScaleY     float64 `json:"scaleY,omitempty"`
	Rotate     float64 `json:"rotate,omitempty"`
	TranslateX float64 `json:"translateX,omitempty"`
	TranslateY float64 `json:"translateY,omitempty"`
}

// Document is the full description handed to the conversion pipeline.
type Document struct {
	Metadata Metadata    `json:"metadata"`
	Page     PageConfig  `json:"page"`
	Style    Style       `json:"style"`
	Fonts    []FontDecl  `json:"fonts,omitempty"`
	Images   []ImageDecl `json:"images,omitempty"`
	Blocks   []Block     `json:"blocks"`
}

// Text is a convenience constructor for a single-run text block.
func Text(s string) Block {
	return Block{Kind: KindText, Text: &TextBlock{Runs: []Run{{Text: s}}}}
}

// Image is a convenience constructor for an image block.
func Image(name string, width, height float64) Block {
	return Block{Kind: KindImage, Image: &ImageBlock{Image: name, Width: width, Height: height}}
}
