// Package assembler turns a placement plan and its resource catalog into a
// PDF object graph held by a writer.Document.
//
// Every font and image is embedded once, in catalog order, and only when
// the plan references it. Each layer of a page becomes one content stream
// marked as optional content.
package assembler

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/ir/raw"
	"github.com/wudi/docpdf/layout"
	"github.com/wudi/docpdf/observability"
	"github.com/wudi/docpdf/resources"
	"github.com/wudi/docpdf/writer"
)

// ErrInvariant marks an inconsistency between the plan and the catalog.
// It points at a bug in the stage that built them, not at bad input.
var ErrInvariant = errors.New("assembler invariant violated")

type InvariantError struct {
	Page    int
	Layer   string
	Element int
	Msg     string
	Err     error
}

func (e *InvariantError) Error() string {
	var b strings.Builder
	b.WriteString("assemble")
	if e.Page > 0 {
		fmt.Fprintf(&b, ": page %d", e.Page)
	}
	if e.Layer != "" {
		fmt.Fprintf(&b, " layer %q", e.Layer)
	}
	if e.Element >= 0 && e.Page > 0 {
		fmt.Fprintf(&b, " element %d", e.Element)
	}
	fmt.Fprintf(&b, ": %v: %s", ErrInvariant, e.Msg)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *InvariantError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvariant}
	}
	return []error{ErrInvariant, e.Err}
}

func invariant(msg string, args ...any) *InvariantError {
	return &InvariantError{Element: -1, Msg: fmt.Sprintf(msg, args...)}
}

// DefaultProducer fills the Info /Producer entry when the metadata has none.
const DefaultProducer = "docpdf"

type Options struct {
	Writer   writer.Config
	Metadata document.Metadata
	Language language.Tag
	// SubsetFonts embeds only the glyphs the plan draws. CFF fonts are
	// always embedded whole.
	SubsetFonts bool
	Logger      observability.Logger
}

type assembler struct {
	plan *layout.Plan
	cat  *resources.Catalog
	opts Options
	log  observability.Logger
	doc  *writer.Document

	usedFonts  map[resources.FontID]bool
	usedImages map[resources.ImageID]bool
	layers     []string
	ocgs       map[string]raw.ObjectRef
}

// Assemble builds the object graph of plan. cat must be the catalog the plan
// was laid out against; its entries are marked embedded.
func Assemble(plan *layout.Plan, cat *resources.Catalog, opts Options) (*writer.Document, error) {
	a := &assembler{
		plan:       plan,
		cat:        cat,
		opts:       opts,
		log:        observability.OrNop(opts.Logger),
		doc:        writer.NewDocument(opts.Writer),
		usedFonts:  make(map[resources.FontID]bool),
		usedImages: make(map[resources.ImageID]bool),
		ocgs:       make(map[string]raw.ObjectRef),
	}
	if err := a.scan(); err != nil {
		return nil, err
	}
	catalogRef := a.doc.Allocate()
	pagesRef := a.doc.Allocate()
	if err := a.embedFonts(); err != nil {
		return nil, err
	}
	if err := a.embedImages(); err != nil {
		return nil, err
	}
	a.buildOCGs()

	kids := raw.NewArray()
	for _, p := range plan.Pages {
		ref, err := a.buildPage(p, pagesRef)
		if err != nil {
			return nil, err
		}
		kids.Append(raw.RefTo(ref))
	}
	pages := raw.Dict().
		Put("Type", raw.NameLiteral("Pages")).
		Put("Kids", kids).
		Put("Count", raw.NumberInt(int64(len(plan.Pages))))
	if err := a.doc.Set(pagesRef, pages); err != nil {
		return nil, err
	}
	if err := a.doc.Set(catalogRef, a.catalogDict(pagesRef)); err != nil {
		return nil, err
	}
	a.doc.SetRoot(catalogRef)
	a.doc.SetInfo(a.doc.Add(infoDict(opts.Metadata)))
	if opts.Metadata.Identifier != "" {
		a.doc.SetIdentifier([]byte(opts.Metadata.Identifier))
	}
	a.log.Debug("document assembled",
		observability.Int("pages", len(plan.Pages)),
		observability.Int("fonts", len(a.usedFonts)),
		observability.Int("images", len(a.usedImages)),
		observability.Int("objects", a.doc.Len()))
	return a.doc, nil
}

// scan checks every element against the catalog and collects the resources
// and layer names the plan uses.
func (a *assembler) scan() error {
	if a.plan == nil || len(a.plan.Pages) == 0 {
		return invariant("plan has no pages")
	}
	seen := make(map[string]bool)
	for _, p := range a.plan.Pages {
		if p.Width <= 0 || p.Height <= 0 {
			return &InvariantError{Page: p.Number, Element: -1, Msg: fmt.Sprintf("page size %gx%g", p.Width, p.Height)}
		}
		for _, l := range p.Layers {
			if !seen[l.Name] {
				seen[l.Name] = true
				a.layers = append(a.layers, l.Name)
			}
			for i, el := range l.Elements {
				loc := &InvariantError{Page: p.Number, Layer: l.Name, Element: i}
				switch el := el.(type) {
				case *layout.GlyphRun:
					if _, ok := a.cat.Font(el.Font); !ok {
						loc.Msg = fmt.Sprintf("font %d is not in the catalog", el.Font)
						return loc
					}
					a.usedFonts[el.Font] = true
				case *layout.ImagePlacement:
					if _, ok := a.cat.Image(el.Image); !ok {
						loc.Msg = fmt.Sprintf("image %d is not in the catalog", el.Image)
						return loc
					}
					a.usedImages[el.Image] = true
				default:
					loc.Msg = fmt.Sprintf("unknown element %T", el)
					return loc
				}
			}
		}
	}
	return nil
}

func (a *assembler) buildOCGs() {
	for _, name := range a.layers {
		usage := raw.Dict().Put("CreatorInfo", raw.Dict().
			Put("Creator", textString(producer(a.opts.Metadata))).
			Put("Subtype", raw.NameLiteral("Artwork")))
		ocg := raw.Dict().
			Put("Type", raw.NameLiteral("OCG")).
			Put("Name", textString(name)).
			Put("Intent", raw.NewArray(raw.NameLiteral("View"), raw.NameLiteral("Design"))).
			Put("Usage", usage)
		a.ocgs[name] = a.doc.Add(ocg)
	}
}

func (a *assembler) catalogDict(pagesRef raw.ObjectRef) *raw.DictObj {
	cat := raw.Dict().
		Put("Type", raw.NameLiteral("Catalog")).
		Put("Pages", raw.RefTo(pagesRef)).
		Put("PageLayout", raw.NameLiteral("OneColumn")).
		Put("PageMode", raw.NameLiteral("UseNone"))
	if a.opts.Language != language.Und {
		cat.Put("Lang", textString(a.opts.Language.String()))
	}
	if len(a.layers) > 0 {
		ocgs := raw.NewArray()
		for _, name := range a.layers {
			ocgs.Append(raw.RefTo(a.ocgs[name]))
		}
		d := raw.Dict().
			Put("Order", ocgs).
			Put("ON", ocgs).
			Put("RBGroups", raw.NewArray())
		cat.Put("OCProperties", raw.Dict().Put("OCGs", ocgs).Put("D", d))
	}
	return cat
}
