package markup

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/wudi/docpdf/document"
)

// FromMarkdown converts CommonMark source, with autolinks, into a document.
// Strikethrough is not recognized; "~~" stays literal text.
func FromMarkdown(src []byte, opts Options) (*document.Document, error) {
	c, err := newCollector(opts)
	if err != nil {
		return nil, err
	}
	md := goldmark.New(goldmark.WithExtensions(extension.Linkify))
	root := md.Parser().Parse(text.NewReader(src))
	w := &mdWalker{c: c, src: src}
	w.blocks(root, "")
	c.flush(0)
	return c.doc, nil
}

type mdWalker struct {
	c   *collector
	src []byte
}

func (w *mdWalker) blocks(parent ast.Node, prefix string) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n, prefix)
		prefix = ""
	}
}

// block renders one block node. prefix is written before its first line,
// which is how list markers reach the item's text.
func (w *mdWalker) block(n ast.Node, prefix string) {
	c := w.c
	switch n := n.(type) {
	case *ast.Heading:
		st := style{bold: true, size: c.headingSize(n.Level)}
		c.text(prefix, st, false)
		w.inlines(n, st)
		c.flush(c.paragraphSpace())
	case *ast.Paragraph, *ast.TextBlock:
		c.text(prefix, style{}, false)
		w.inlines(n, style{})
		c.flush(c.paragraphSpace())
	case *ast.List:
		num := n.Start
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			marker := bullet
			if n.IsOrdered() {
				marker = strconv.Itoa(num) + string(n.Marker) + " "
				num++
			}
			w.blocks(item, prefix+marker)
			prefix = ""
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var b strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(w.src))
		}
		c.text(prefix, style{}, false)
		c.text(strings.TrimRight(b.String(), "\n"), style{mono: true}, false)
		c.flush(c.paragraphSpace())
	case *ast.Blockquote:
		w.blocks(n, prefix)
	case *ast.ThematicBreak, *ast.HTMLBlock:
	default:
		w.blocks(n, prefix)
	}
}

func (w *mdWalker) inlines(parent ast.Node, st style) {
	c := w.c
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Text:
			c.text(string(n.Segment.Value(w.src)), st, true)
			switch {
			case n.HardLineBreak():
				c.lineBreak(st)
			case n.SoftLineBreak():
				c.text(" ", st, true)
			}
		case *ast.String:
			c.text(string(n.Value), st, true)
		case *ast.CodeSpan:
			code := st
			code.mono = true
			w.inlines(n, code)
		case *ast.Emphasis:
			em := st
			if n.Level >= 2 {
				em.bold = true
			} else {
				em.italic = true
			}
			w.inlines(n, em)
		case *ast.Link:
			link := st
			link.link = absoluteLink(string(n.Destination))
			w.inlines(n, link)
		case *ast.AutoLink:
			link := st
			u := string(n.URL(w.src))
			if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(u, "mailto:") {
				link.link = absoluteLink("mailto:" + u)
			} else {
				link.link = absoluteLink(u)
			}
			c.text(string(n.Label(w.src)), link, true)
		case *ast.Image:
			c.image(string(n.Destination), w.plain(n), st)
		case *ast.RawHTML:
		default:
			w.inlines(n, st)
		}
	}
}

// plain collects the text beneath n, used for image alt text.
func (w *mdWalker) plain(n ast.Node) string {
	var b strings.Builder
	ast.Walk(n, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(w.src))
		case *ast.String:
			b.Write(n.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
