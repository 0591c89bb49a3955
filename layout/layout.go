// Package layout turns a validated document into a placement plan: pages,
// layers and the absolutely positioned glyph runs and images on them.
//
// Layout is greedy. Text is wrapped before the first glyph that would cross
// the right edge of the content area and lines flow top to bottom; when a
// line does not fit, the overflow policy decides between a new page and an
// error.
package layout

import (
	"fmt"

	"github.com/wudi/docpdf/coords"
	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/observability"
	"github.com/wudi/docpdf/resources"
)

// OverflowPolicy decides what happens when content does not fit on the
// current page. It has no default; the zero value is rejected.
type OverflowPolicy int

const (
	OverflowFlow OverflowPolicy = iota + 1
	OverflowStrict
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowFlow:
		return "flow"
	case OverflowStrict:
		return "strict"
	}
	return fmt.Sprintf("OverflowPolicy(%d)", int(p))
}

type WrapMode int

const (
	// WrapGlyph breaks before the first glyph that does not fit.
	WrapGlyph WrapMode = iota
	// WrapWord breaks after the last space on the line when there is one.
	WrapWord
)

// DefaultLayerName names the layer of blocks that do not choose one.
const DefaultLayerName = "Layer0"

// eps absorbs rounding when summing advances and line heights.
const eps = 1e-6

type Config struct {
	Overflow  OverflowPolicy
	Wrap      WrapMode
	Shaping   bool
	LayerName string
	Logger    observability.Logger
}

// Option defines a configuration option for layout.
type Option func(*Config)

func WithWrap(mode WrapMode) Option {
	return func(c *Config) { c.Wrap = mode }
}

// WithShaping runs text through HarfBuzz instead of the cmap and kern tables.
func WithShaping(enabled bool) Option {
	return func(c *Config) { c.Shaping = enabled }
}

func WithLayerName(name string) Option {
	return func(c *Config) { c.LayerName = name }
}

func WithLogger(l observability.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// NewConfig builds a Config with the required overflow policy.
func NewConfig(policy OverflowPolicy, opts ...Option) Config {
	c := Config{Overflow: policy}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Config) Validate() error {
	switch c.Overflow {
	case OverflowFlow, OverflowStrict:
	case 0:
		return ErrOverflowPolicyRequired
	default:
		return fmt.Errorf("unknown overflow policy %d", int(c.Overflow))
	}
	switch c.Wrap {
	case WrapGlyph, WrapWord:
	default:
		return fmt.Errorf("unknown wrap mode %d", int(c.Wrap))
	}
	return nil
}

// Engine holds the cursor state of one layout pass.
type Engine struct {
	cfg     Config
	cat     *resources.Catalog
	log     observability.Logger
	doc     *document.Validated
	content coords.Rect

	plan     *Plan
	page     *Page
	pageUsed bool
	cursorX  float64
	cursorY  float64

	missing map[missingGlyph]bool
}

type missingGlyph struct {
	font resources.FontID
	r    rune
}

// Layout places every block of v. Fonts and images are interned in cat as
// they are first referenced.
func Layout(v *document.Validated, cat *resources.Catalog, cfg Config) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LayerName == "" {
		cfg.LayerName = DefaultLayerName
	}
	e := &Engine{
		cfg:     cfg,
		cat:     cat,
		log:     observability.OrNop(cfg.Logger),
		doc:     v,
		content: v.ContentRect(),
		plan:    &Plan{},
		missing: make(map[missingGlyph]bool),
	}
	for i := range v.Blocks {
		b := &v.Blocks[i]
		var err error
		switch b.Kind {
		case document.KindText:
			err = e.layoutText(b)
		case document.KindImage:
			err = e.layoutImage(b)
		default:
			err = fmt.Errorf("block %d: unknown kind %q", b.Index, b.Kind)
		}
		if err != nil {
			return nil, err
		}
		if e.page != nil && e.pageUsed {
			e.cursorY += b.SpaceAfter
		}
	}
	e.ensurePage()
	e.log.Debug("layout finished", observability.Int("pages", len(e.plan.Pages)),
		observability.Int("blocks", len(v.Blocks)), observability.String("overflow", cfg.Overflow.String()))
	return e.plan, nil
}

func (e *Engine) ensurePage() {
	if e.page == nil {
		e.newPage()
	}
}

func (e *Engine) newPage() {
	e.page = &Page{Number: len(e.plan.Pages) + 1, Width: e.doc.PageWidth, Height: e.doc.PageHeight}
	e.plan.Pages = append(e.plan.Pages, e.page)
	e.pageUsed = false
	e.cursorX = e.content.X
	e.cursorY = e.content.Y
}

// checkPageBreak makes room for an element of height h below the cursor,
// opening a new page when the policy allows it.
func (e *Engine) checkPageBreak(h float64, block int) error {
	e.ensurePage()
	if h > e.content.H+eps {
		return e.tooLarge(block, fmt.Sprintf("height %g exceeds content height %g", h, e.content.H))
	}
	if e.cursorY+h <= e.content.Bottom()+eps {
		return nil
	}
	if !e.pageUsed {
		return e.tooLarge(block, fmt.Sprintf("height %g does not fit an empty page", h))
	}
	if e.cfg.Overflow == OverflowStrict {
		return &LayoutError{Kind: ErrContentOverflow, Block: block, Page: e.page.Number,
			Msg: fmt.Sprintf("%g points needed, %g left", h, e.content.Bottom()-e.cursorY)}
	}
	e.newPage()
	e.log.Debug("page break", observability.Int("page", e.page.Number), observability.Int("block", block))
	return nil
}

func (e *Engine) tooLarge(block int, msg string) error {
	page := 0
	if e.page != nil {
		page = e.page.Number
	}
	return &LayoutError{Kind: ErrElementTooLarge, Block: block, Page: page, Msg: msg}
}

func (e *Engine) layerName(b *document.ValidBlock) string {
	if b.Layer != "" {
		return b.Layer
	}
	return e.cfg.LayerName
}

func (e *Engine) place(b *document.ValidBlock, el Element) {
	l := e.page.Layer(e.layerName(b))
	l.Elements = append(l.Elements, el)
}
