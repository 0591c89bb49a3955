package document

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func baseDoc() *Document {
	return &Document{
		Page:   PageConfig{Width: 200, Height: 200, Margins: Uniform(10)},
		Fonts:  []FontDecl{{Name: "body", Source: Source{Path: "body.ttf"}}},
		Images: []ImageDecl{{Name: "logo", Source: Source{Path: "logo.png"}}},
		Blocks: []Block{Text("Hi")},
	}
}

func TestValidateResolvesDefaults(t *testing.T) {
	v, err := Validate(baseDoc())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.PageWidth != 200 || v.PageHeight != 200 {
		t.Fatalf("page size %vx%v", v.PageWidth, v.PageHeight)
	}
	r := v.Blocks[0].Runs[0]
	if r.Font.Name != "body" || r.Size != DefaultFontSize || r.Color != Black {
		t.Fatalf("unexpected run %+v", r)
	}
	if cr := v.ContentRect(); cr.X != 10 || cr.Y != 10 || cr.W != 180 || cr.H != 180 {
		t.Fatalf("content rect %+v", cr)
	}
}

func TestValidateConvertsUnits(t *testing.T) {
	doc := baseDoc()
	doc.Page = PageConfig{Width: 10, Height: 20, Unit: UnitCentimeter, Margins: Uniform(1)}
	doc.Blocks[0].Text.Runs[0].Size = 0.5
	v, err := Validate(doc)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if math.Abs(v.PageWidth-283.46457) > 1e-4 || math.Abs(v.Margins.Left-28.346457) > 1e-5 {
		t.Fatalf("unexpected conversion %v %v", v.PageWidth, v.Margins.Left)
	}
	if math.Abs(v.Blocks[0].Runs[0].Size-14.173228) > 1e-5 {
		t.Fatalf("run size not converted: %v", v.Blocks[0].Runs[0].Size)
	}
}

func TestValidatePaperSize(t *testing.T) {
	doc := baseDoc()
	doc.Page = PageConfig{Size: PaperLetter}
	v, err := Validate(doc)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.PageWidth != 612 || v.PageHeight != 792 {
		t.Fatalf("letter is %vx%v", v.PageWidth, v.PageHeight)
	}
}

func TestValidateErrors(t *testing.T) {
	neg := -1.0
	cases := []struct {
		name   string
		mutate func(*Document)
		kind   error
		block  int
	}{
		{"zero width", func(d *Document) { d.Page.Width = 0 }, ErrInvalidGeometry, -1},
		{"margin over half", func(d *Document) { d.Page.Margins.Left = 101 }, ErrInvalidGeometry, -1},
		{"negative margin", func(d *Document) { d.Page.Margins.Top = -1 }, ErrInvalidGeometry, -1},
		{"unknown unit", func(d *Document) { d.Page.Unit = "px" }, ErrInvalidGeometry, -1},
		{"unknown paper", func(d *Document) { d.Page = PageConfig{Size: "B9"} }, ErrInvalidGeometry, -1},
		{"nan height", func(d *Document) { d.Page.Height = math.NaN() }, ErrInvalidGeometry, -1},
		{"undeclared font", func(d *Document) { d.Blocks[0].Text.Runs[0].Font = "nope" }, ErrDanglingResourceReference, 0},
		{"undeclared image", func(d *Document) { d.Blocks = append(d.Blocks, Image("nope", 10, 10)) }, ErrDanglingResourceReference, 1},
		{"no fonts", func(d *Document) { d.Fonts = nil }, ErrDanglingResourceReference, 0},
		{"zero size run", func(d *Document) { d.Blocks[0].Text.Runs[0].Size = -3 }, ErrInvalidStyle, 0},
		{"huge size", func(d *Document) { d.Blocks[0].Text.Runs[0].Size = 20000 }, ErrInvalidStyle, 0},
		{"color channel", func(d *Document) { d.Blocks[0].Text.Runs[0].Color = &Color{R: 1.5} }, ErrInvalidStyle, 0},
		{"tracking", func(d *Document) { inf := math.Inf(1); d.Blocks[0].Text.Runs[0].Tracking = &inf }, ErrInvalidStyle, 0},
		{"relative link", func(d *Document) { d.Blocks[0].Text.Runs[0].Link = "/relative" }, ErrInvalidStyle, 0},
		{"bad lang", func(d *Document) { d.Blocks[0].Text.Runs[0].Language = "not a tag!" }, ErrInvalidStyle, 0},
		{"empty run", func(d *Document) { d.Blocks[0].Text.Runs[0].Text = "" }, ErrEmptyText, 0},
		{"no runs", func(d *Document) { d.Blocks[0].Text.Runs = nil }, ErrEmptyText, 0},
		{"kind mismatch", func(d *Document) { d.Blocks[0].Kind = KindImage }, ErrMalformedBlock, 0},
		{"unknown kind", func(d *Document) { d.Blocks[0].Kind = "table" }, ErrMalformedBlock, 0},
		{"negative scale", func(d *Document) {
			b := Image("logo", 10, 10)
			b.Image.Transform = &Transform{ScaleX: neg}
			d.Blocks = append(d.Blocks, b)
		}, ErrInvalidStyle, 1},
		{"duplicate font", func(d *Document) { d.Fonts = append(d.Fonts, d.Fonts[0]) }, ErrDuplicateResource, -1},
		{"sourceless image", func(d *Document) { d.Images[0].Path = "" }, ErrDanglingResourceReference, -1},
		{"bad metadata lang", func(d *Document) { d.Metadata.Language = "x-?" }, ErrInvalidMetadata, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := baseDoc()
			tc.mutate(doc)
			_, err := Validate(doc)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			var de *DocumentError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DocumentError, got %T", err)
			}
			if de.Block != tc.block {
				t.Fatalf("expected block %d, got %d (%v)", tc.block, de.Block, err)
			}
		})
	}
}

func TestEmptyRunAllowedWhenMarked(t *testing.T) {
	doc := baseDoc()
	doc.Blocks[0].Text.Runs[0] = Run{Empty: true}
	if _, err := Validate(doc); err != nil {
		t.Fatalf("marked empty run rejected: %v", err)
	}
}

func TestFontFamilyAndStyle(t *testing.T) {
	doc := baseDoc()
	doc.Fonts = []FontDecl{
		{Name: "sans", Family: "Sans", Style: "regular", Source: Source{Path: "r.ttf"}},
		{Name: "sans-bold", Family: "Sans", Style: "bold", Source: Source{Path: "b.ttf"}},
	}
	doc.Blocks[0].Text.Runs = []Run{
		{Text: "a", Font: "Sans"},
		{Text: "b", Font: "Sans", FontStyle: "Bold"},
		{Text: "c", Font: "sans-bold"},
	}
	v, err := Validate(doc)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	got := []string{}
	for _, r := range v.Blocks[0].Runs {
		got = append(got, r.Font.Name)
	}
	if strings.Join(got, ",") != "sans,sans-bold,sans-bold" {
		t.Fatalf("resolved fonts %v", got)
	}

	doc.Blocks[0].Text.Runs = []Run{{Text: "d", Font: "Sans", FontStyle: "italic"}}
	if _, err := Validate(doc); !errors.Is(err, ErrDanglingResourceReference) {
		t.Fatalf("expected missing italic face, got %v", err)
	}
}

func TestDocumentErrorMessage(t *testing.T) {
	doc := baseDoc()
	doc.Blocks[0].Text.Runs[0].Size = -1
	_, err := Validate(doc)
	want := "document: block 0 run 0: size: invalid style"
	if err == nil || !strings.HasPrefix(err.Error(), want) {
		t.Fatalf("got %v, want prefix %q", err, want)
	}
}
