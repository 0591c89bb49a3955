package markup

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wudi/docpdf/document"
)

// FromHTML converts an HTML page into a document. The <title> and the
// root lang attribute fill in metadata the options leave empty.
func FromHTML(src []byte, opts Options) (*document.Document, error) {
	c, err := newCollector(opts)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	w := &htmlWalker{c: c}
	w.node(root, style{})
	c.flush(0)
	return c.doc, nil
}

type htmlWalker struct {
	c   *collector
	pre int
}

func (w *htmlWalker) children(n *html.Node, st style) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		w.node(ch, st)
	}
}

func (w *htmlWalker) node(n *html.Node, st style) {
	c := w.c
	switch n.Type {
	case html.TextNode:
		c.text(n.Data, st, w.pre == 0)
		return
	case html.DocumentNode:
		w.children(n, st)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Head:
		w.head(n)
	case atom.Html:
		if lang := attr(n, "lang"); lang != "" && c.doc.Metadata.Language == "" {
			c.doc.Metadata.Language = lang
		}
		w.children(n, st)
	case atom.Script, atom.Style, atom.Template, atom.Noscript:
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		c.flush(c.paragraphSpace())
		h := st
		h.bold, h.size = true, c.headingSize(level)
		w.children(n, h)
		c.flush(c.paragraphSpace())
	case atom.P, atom.Blockquote, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Main, atom.Nav, atom.Aside, atom.Figure, atom.Figcaption, atom.Dd, atom.Dt:
		c.flush(c.paragraphSpace())
		w.children(n, st)
		c.flush(c.paragraphSpace())
	case atom.Ul, atom.Ol:
		c.flush(c.paragraphSpace())
		w.list(n, st)
	case atom.Li:
		// Stray item outside a list.
		c.flush(c.paragraphSpace())
		c.text(bullet, st, false)
		w.children(n, st)
		c.flush(c.paragraphSpace())
	case atom.Pre:
		c.flush(c.paragraphSpace())
		code := st
		code.mono = true
		w.pre++
		w.children(n, code)
		w.pre--
		c.flush(c.paragraphSpace())
	case atom.Br:
		c.lineBreak(st)
	case atom.Hr:
		c.flush(c.paragraphSpace())
	case atom.B, atom.Strong:
		b := st
		b.bold = true
		w.children(n, b)
	case atom.I, atom.Em, atom.Cite, atom.Var:
		i := st
		i.italic = true
		w.children(n, i)
	case atom.Code, atom.Kbd, atom.Samp, atom.Tt:
		m := st
		m.mono = true
		w.children(n, m)
	case atom.A:
		a := st
		if href := absoluteLink(attr(n, "href")); href != "" {
			a.link = href
		}
		w.children(n, a)
	case atom.Img:
		c.image(attr(n, "src"), attr(n, "alt"), st)
	default:
		w.children(n, st)
	}
}

func (w *htmlWalker) head(n *html.Node) {
	c := w.c
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode && ch.DataAtom == atom.Title && c.doc.Metadata.Title == "" {
			c.doc.Metadata.Title = strings.TrimSpace(collapseSpace(textContent(ch)))
		}
	}
}

func (w *htmlWalker) list(n *html.Node, st style) {
	c := w.c
	ordered := n.DataAtom == atom.Ol
	num := 1
	if s := attr(n, "start"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			num = v
		}
	}
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		c.flush(c.paragraphSpace())
		if ordered {
			c.text(strconv.Itoa(num)+". ", st, false)
			num++
		} else {
			c.text(bullet, st, false)
		}
		w.children(li, st)
		c.flush(c.paragraphSpace())
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return b.String()
}
