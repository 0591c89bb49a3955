package ir

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/docpdf/assembler"
	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/layout"
	"github.com/wudi/docpdf/observability"
	"github.com/wudi/docpdf/writer"
)

func hiDoc() *document.Document {
	return &document.Document{
		Page:   document.PageConfig{Width: 200, Height: 200, Margins: document.Uniform(10)},
		Fonts:  []document.FontDecl{{Name: "Go", Source: document.Source{Data: goregular.TTF}}},
		Blocks: []document.Block{document.Text("Hi")},
	}
}

func write(t *testing.T, p *Pipeline, doc *document.Document) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := p.Write(context.Background(), doc, &buf)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Fatalf("reported %d bytes, wrote %d", n, buf.Len())
	}
	return buf.Bytes()
}

func TestEndToEnd(t *testing.T) {
	p := New(layout.OverflowFlow, WithWriterConfig(writer.Config{}))
	out := write(t, p, hiDoc())
	for _, want := range []string{"%PDF-1.7\n", "10 190 Td\n", "/Type /Page>>", "/Count 1", "%%EOF"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Fatalf("output missing %q", want)
		}
	}
	if n := bytes.Count(out, []byte("/FontFile2 ")); n != 1 {
		t.Fatalf("FontFile2 entries = %d", n)
	}
	if n := bytes.Count(out, []byte("/Type /Page>>")); n != 1 {
		t.Fatalf("pages = %d", n)
	}
}

func TestDeterministicOutput(t *testing.T) {
	doc := hiDoc()
	doc.Blocks = append(doc.Blocks, document.Text(strings.Repeat("Deterministic output. ", 60)))
	p := New(layout.OverflowFlow)
	first := write(t, p, doc)
	for i := 0; i < 3; i++ {
		if again := write(t, p, doc); !bytes.Equal(first, again) {
			t.Fatalf("run %d produced different bytes", i)
		}
	}
}

func TestConcurrentConversions(t *testing.T) {
	p := New(layout.OverflowFlow)
	want := write(t, p, hiDoc())
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			if _, err := p.Write(context.Background(), hiDoc(), &buf); err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(buf.Bytes(), want) {
				errs <- errors.New("concurrent conversion produced different bytes")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestFontEmbeddedOnceAcrossPages(t *testing.T) {
	doc := hiDoc()
	doc.Blocks = []document.Block{document.Text(strings.Repeat("many pages of text ", 200))}
	d, err := New(layout.OverflowFlow).Convert(context.Background(), doc)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	out, err := d.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if pages := bytes.Count(out, []byte("/Type /Page>>")); pages < 2 {
		t.Fatalf("expected several pages, got %d", pages)
	}
	if n := bytes.Count(out, []byte("/FontFile2 ")); n != 1 {
		t.Fatalf("FontFile2 entries = %d", n)
	}
}

func TestStageErrors(t *testing.T) {
	badGeometry := hiDoc()
	badGeometry.Page.Margins = document.Uniform(150)

	overflow := hiDoc()
	overflow.Blocks = []document.Block{document.Text(strings.Repeat("line\n", 40))}

	missing := hiDoc()
	missing.Fonts[0].Source = document.Source{Path: "/does/not/exist.ttf"}

	cases := []struct {
		name   string
		policy layout.OverflowPolicy
		doc    *document.Document
		stage  Stage
		kind   error
	}{
		{"no policy", 0, hiDoc(), StageConfigure, layout.ErrOverflowPolicyRequired},
		{"geometry", layout.OverflowFlow, badGeometry, StageValidate, document.ErrInvalidGeometry},
		{"overflow", layout.OverflowStrict, overflow, StageLayout, layout.ErrContentOverflow},
		{"missing font", layout.OverflowFlow, missing, StageLayout, layout.ErrResourceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.policy).Convert(context.Background(), tc.doc)
			stage, ok := StageOf(err)
			if !ok || stage != tc.stage {
				t.Fatalf("stage = %q (%v), want %q", stage, err, tc.stage)
			}
			if !errors.Is(err, tc.kind) {
				t.Fatalf("error %v does not wrap %v", err, tc.kind)
			}
		})
	}
}

type failingWriter struct{}

var errDiskFull = errors.New("disk full")

func (failingWriter) Write([]byte) (int, error) { return 0, errDiskFull }

func TestWriteErrorIsTagged(t *testing.T) {
	_, err := New(layout.OverflowFlow).Write(context.Background(), hiDoc(), failingWriter{})
	if stage, _ := StageOf(err); stage != StageWrite || !errors.Is(err, errDiskFull) {
		t.Fatalf("expected write stage error, got %v", err)
	}
}

type recordingTracer struct {
	mu    sync.Mutex
	spans []string
	tags  map[string]interface{}
	errs  int
}

type recordingSpan struct {
	t    *recordingTracer
	name string
}

func (r *recordingTracer) StartSpan(ctx context.Context, name string) (context.Context, observability.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, name)
	return ctx, &recordingSpan{t: r, name: name}
}

func (s *recordingSpan) SetTag(key string, value interface{}) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.t.tags == nil {
		s.t.tags = make(map[string]interface{})
	}
	s.t.tags[key] = value
}

func (s *recordingSpan) SetError(error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.errs++
}

func (s *recordingSpan) Finish() {}

func TestTracingSpans(t *testing.T) {
	tr := &recordingTracer{}
	rec := observability.NewRecordingLogger()
	p := New(layout.OverflowFlow, WithTracer(tr), WithLogger(rec))
	write(t, p, hiDoc())
	want := []string{
		observability.SpanConvert, observability.SpanValidate, observability.SpanLayout,
		observability.SpanAssemble, observability.SpanWrite,
	}
	if strings.Join(tr.spans, ",") != strings.Join(want, ",") {
		t.Fatalf("spans %v, want %v", tr.spans, want)
	}
	if tr.tags[observability.TagPageCount] != 1 || tr.tags[observability.TagFontCount] != 1 {
		t.Fatalf("unexpected tags %v", tr.tags)
	}
	if rec.Count("info") != 1 {
		t.Fatalf("expected one info entry, got %d", rec.Count("info"))
	}

	tr = &recordingTracer{}
	doc := hiDoc()
	doc.Page.Width = -1
	if _, err := New(layout.OverflowFlow, WithTracer(tr)).Convert(context.Background(), doc); err == nil {
		t.Fatalf("expected validation error")
	}
	if tr.errs != 2 {
		t.Fatalf("validate and convert spans should record the error, got %d", tr.errs)
	}
}

func pngData(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCompressedStreamsAreZlib(t *testing.T) {
	doc := hiDoc()
	doc.Images = []document.ImageDecl{{Name: "dot", Source: document.Source{Data: pngData(t, 4, 4)}}}
	doc.Blocks = append(doc.Blocks, document.Image("dot", 20, 20))
	out := write(t, New(layout.OverflowFlow), doc)

	streams := 0
	for rest := out; ; {
		i := bytes.Index(rest, []byte("/Filter /FlateDecode"))
		if i < 0 {
			break
		}
		rest = rest[i:]
		start := bytes.Index(rest, []byte("stream\n")) + len("stream\n")
		end := bytes.Index(rest, []byte("\nendstream"))
		zr, err := zlib.NewReader(bytes.NewReader(rest[start:end]))
		if err != nil {
			t.Fatalf("stream %d: %v", streams, err)
		}
		if _, err := io.ReadAll(zr); err != nil {
			t.Fatalf("stream %d: inflate: %v", streams, err)
		}
		streams++
		rest = rest[end:]
	}
	// content streams, font program, ToUnicode and image samples
	if streams < 4 {
		t.Fatalf("decoded %d compressed streams, want at least 4", streams)
	}
}

func FuzzConvert(f *testing.F) {
	f.Add("Hi", 12.0, 200.0, 10.0, false, 20.0, 10.0, 0.0, 0.0, 0.0, 4.0, false, false, "second")
	f.Add("a\nb\tc\x00d", 30.0, 100.0, 0.0, true, 0.0, 0.0, 90.0, 5.0, -3.0, 0.0, true, false, "")
	f.Add("😀 العربية 中文", 8.0, 300.0, 40.0, false, 500.0, 1.0, 45.0, 0.0, 10.0, 12.0, true, true, "x y z")
	sample := pngData(f, 3, 2)
	f.Fuzz(func(t *testing.T, text string, size, page, margin float64, strict bool,
		imgW, imgH, rotate, tx, ty, space float64, word, shape bool, second string) {
		if !utf8.ValidString(text) || !utf8.ValidString(second) {
			t.Skip()
		}
		doc := hiDoc()
		doc.Page = document.PageConfig{Width: page, Height: page, Margins: document.Uniform(margin)}
		doc.Images = []document.ImageDecl{{Name: "img", Source: document.Source{Data: sample}}}
		img := document.Image("img", imgW, imgH)
		img.Image.Transform = &document.Transform{Rotate: rotate, TranslateX: tx, TranslateY: ty}
		doc.Blocks = []document.Block{document.Text(text), img}
		doc.Blocks[0].Text.Runs[0].Size = size
		doc.Blocks[0].SpaceAfter = space
		if second != "" {
			doc.Blocks = append(doc.Blocks, document.Text(second))
		}
		policy := layout.OverflowFlow
		if strict {
			policy = layout.OverflowStrict
		}
		wrap := layout.WrapGlyph
		if word {
			wrap = layout.WrapWord
		}
		p := New(policy, WithSubsetFonts(false), WithWrap(wrap), WithShaping(shape))
		_, err := p.Convert(context.Background(), doc)
		if err == nil {
			return
		}
		if _, ok := StageOf(err); !ok {
			t.Fatalf("untagged error %v", err)
		}
		var (
			de *document.DocumentError
			le *layout.LayoutError
			ie *assembler.InvariantError
		)
		switch {
		case errors.As(err, &de), errors.As(err, &le):
		case errors.As(err, &ie):
			t.Fatalf("invariant violated for valid input: %v", err)
		default:
			t.Fatalf("error outside the taxonomy: %v", err)
		}
	})
}
