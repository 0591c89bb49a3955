package document

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleJSON = `{
  "metadata": {"title": "Report", "lang": "en-US"},
  "page": {"width": 210, "height": 297, "unit": "mm", "margins": {"top": 20, "right": 15, "bottom": 20, "left": 15}},
  "style": {"font": "body", "size": 11, "color": "#333"},
  "fonts": [{"name": "body", "path": "fonts/body.ttf"}],
  "images": [{"name": "logo", "data": "iVBORw0KGgo="}],
  "blocks": [
    {"kind": "text", "text": {"runs": [{"text": "Hello "}, {"text": "world", "color": [1, 0, 0], "link": "https://example.com"}]}},
    {"kind": "image", "image": {"image": "logo", "width": 30, "transform": {"rotate": 90}}, "layer": "art"}
  ]
}`

func TestDecode(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	gray := 0x33 / 255.0
	want := Style{Font: "body", Size: 11, Color: &Color{R: gray, G: gray, B: gray}}
	if diff := cmp.Diff(want, doc.Style); diff != "" {
		t.Fatalf("style mismatch (-want +got):\n%s", diff)
	}
	if got := doc.Blocks[0].Text.Runs[1]; got.Link != "https://example.com" || *got.Color != (Color{R: 1}) {
		t.Fatalf("unexpected run %+v", got)
	}
	if doc.Blocks[1].Layer != "art" || doc.Blocks[1].Image.Transform.Rotate != 90 {
		t.Fatalf("unexpected image block %+v", doc.Blocks[1])
	}
	if len(doc.Images[0].Data) != 8 {
		t.Fatalf("inline data not decoded: %v", doc.Images[0].Data)
	}
	if _, err := Validate(doc); err != nil {
		t.Fatalf("validate decoded: %v", err)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"page": {"widht": 10}}`)); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := Decode(strings.NewReader(`{"style": {"color": "#12"}}`)); err == nil {
		t.Fatalf("expected bad color error")
	}
}

func TestParseColor(t *testing.T) {
	cases := map[string]Color{
		"#ff0000": {R: 1},
		"#FFF":    White,
		"black":   Black,
		" Blue ":  {B: 1},
	}
	for in, want := range cases {
		got, err := ParseColor(in)
		if err != nil || got != want {
			t.Errorf("ParseColor(%q) = %+v, %v", in, got, err)
		}
	}
	if _, err := ParseColor("teal-ish"); err == nil {
		t.Errorf("expected error for unknown name")
	}
}
