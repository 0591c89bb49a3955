// Package markup turns Markdown and HTML sources into a document.Document
// ready for the conversion pipeline. Headings scale the base size, emphasis
// maps to the italic and bold faces, code to the monospace face, and images
// become image blocks.
package markup

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/wudi/docpdf/document"
)

// ErrNoFont is returned when Options carries no regular face.
var ErrNoFont = errors.New("markup: no regular font")

// Fonts are the faces used for styled text. Only Regular is required;
// missing faces fall back to the closest declared one.
type Fonts struct {
	Regular    document.Source
	Bold       document.Source
	Italic     document.Source
	BoldItalic document.Source
	Mono       document.Source
}

// Options configure the produced document. A zero Page is A4.
type Options struct {
	Metadata document.Metadata
	Page     document.PageConfig
	Style    document.Style
	Fonts    Fonts
	// BaseDir resolves relative image paths.
	BaseDir string
	// Layer places every block on the named layer.
	Layer string
}

// Declared font names.
const (
	FontRegular    = "regular"
	FontBold       = "bold"
	FontItalic     = "italic"
	FontBoldItalic = "bold-italic"
	FontMono       = "mono"
)

const bodyFamily = "body"

var headingScale = [...]float64{2, 1.5, 1.25, 1.1, 1, 1}

const bullet = "• "

type style struct {
	bold, italic, mono bool
	size               float64
	link               string
}

// collector accumulates runs into text blocks.
type collector struct {
	opts     Options
	doc      *document.Document
	base     float64
	declared map[string]bool
	images   map[string]bool
	runs     []document.Run
}

func newCollector(opts Options) (*collector, error) {
	if !hasSource(opts.Fonts.Regular) {
		return nil, ErrNoFont
	}
	c := &collector{
		opts:     opts,
		base:     opts.Style.Size,
		declared: make(map[string]bool),
		images:   make(map[string]bool),
	}
	if c.base <= 0 {
		c.base = document.DefaultFontSize
	}
	st := opts.Style
	st.Font = FontRegular
	page := opts.Page
	if page.Size == "" && page.Width == 0 && page.Height == 0 {
		page.Size = document.PaperA4
	}
	c.doc = &document.Document{Metadata: opts.Metadata, Page: page, Style: st}
	c.declare(FontRegular, "normal", opts.Fonts.Regular)
	c.declare(FontBold, "bold", opts.Fonts.Bold)
	c.declare(FontItalic, "italic", opts.Fonts.Italic)
	c.declare(FontBoldItalic, "bold-italic", opts.Fonts.BoldItalic)
	if hasSource(opts.Fonts.Mono) {
		c.doc.Fonts = append(c.doc.Fonts, document.FontDecl{Name: FontMono, Source: opts.Fonts.Mono})
		c.declared[FontMono] = true
	}
	return c, nil
}

func hasSource(s document.Source) bool { return s.Path != "" || len(s.Data) > 0 }

func (c *collector) declare(name, faceStyle string, src document.Source) {
	if !hasSource(src) {
		return
	}
	c.doc.Fonts = append(c.doc.Fonts, document.FontDecl{Name: name, Family: bodyFamily, Style: faceStyle, Source: src})
	c.declared[name] = true
}

func (c *collector) fontName(st style) string {
	var chain []string
	switch {
	case st.mono:
		chain = []string{FontMono}
	case st.bold && st.italic:
		chain = []string{FontBoldItalic, FontBold, FontItalic}
	case st.bold:
		chain = []string{FontBold}
	case st.italic:
		chain = []string{FontItalic}
	}
	for _, name := range chain {
		if c.declared[name] {
			return name
		}
	}
	return FontRegular
}

// text appends s in style st. With collapse set, whitespace runs become a
// single space and leading space at the start of a block is dropped.
func (c *collector) text(s string, st style, collapse bool) {
	if collapse {
		s = collapseSpace(s)
		if c.atLineStart() {
			s = strings.TrimLeft(s, " ")
		}
	}
	if s == "" {
		return
	}
	r := document.Run{Text: s, Font: c.fontName(st), Size: st.size, Link: st.link}
	if n := len(c.runs); n > 0 {
		last := &c.runs[n-1]
		if last.Font == r.Font && last.Size == r.Size && last.Link == r.Link {
			last.Text += s
			return
		}
	}
	c.runs = append(c.runs, r)
}

// lineBreak ends the current line, dropping spaces before the break.
func (c *collector) lineBreak(st style) {
	if n := len(c.runs); n > 0 {
		c.runs[n-1].Text = strings.TrimRight(c.runs[n-1].Text, " ")
		if c.runs[n-1].Text == "" {
			c.runs = c.runs[:n-1]
		}
	}
	c.text("\n", st, false)
}

func (c *collector) atLineStart() bool {
	if len(c.runs) == 0 {
		return true
	}
	t := c.runs[len(c.runs)-1].Text
	return strings.HasSuffix(t, " ") || strings.HasSuffix(t, "\n")
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

// flush closes the current text block, if it has any text.
func (c *collector) flush(spaceAfter float64) {
	for len(c.runs) > 0 {
		last := &c.runs[len(c.runs)-1]
		last.Text = strings.TrimRight(last.Text, " \n")
		if last.Text != "" {
			break
		}
		c.runs = c.runs[:len(c.runs)-1]
	}
	if len(c.runs) == 0 {
		return
	}
	c.doc.Blocks = append(c.doc.Blocks, document.Block{
		Kind:       document.KindText,
		Text:       &document.TextBlock{Runs: c.runs},
		Layer:      c.opts.Layer,
		SpaceAfter: spaceAfter,
	})
	c.runs = nil
}

// image ends the current block and adds an image block for src. Remote and
// inline sources are not fetched; their alt text is kept instead.
func (c *collector) image(src, alt string, st style) {
	if src == "" || isRemote(src) {
		c.text(alt, st, true)
		return
	}
	c.flush(0)
	if !c.images[src] {
		path := src
		if !filepath.IsAbs(path) && c.opts.BaseDir != "" {
			path = filepath.Join(c.opts.BaseDir, path)
		}
		c.doc.Images = append(c.doc.Images, document.ImageDecl{Name: src, Source: document.Source{Path: path}})
		c.images[src] = true
	}
	b := document.Image(src, 0, 0)
	b.Layer = c.opts.Layer
	b.SpaceAfter = c.paragraphSpace()
	c.doc.Blocks = append(c.doc.Blocks, b)
}

func isRemote(src string) bool {
	u, err := url.Parse(src)
	return err != nil || (u.Scheme != "" && len(u.Scheme) > 1)
}

// absoluteLink keeps only links the document model accepts.
func absoluteLink(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Scheme == "" {
		return ""
	}
	return u.String()
}

func (c *collector) headingSize(level int) float64 {
	if level < 1 {
		level = 1
	}
	if level > len(headingScale) {
		level = len(headingScale)
	}
	return c.base * headingScale[level-1]
}

func (c *collector) paragraphSpace() float64 { return c.base * 0.5 }
