// Command docpdf converts a JSON document description, Markdown or HTML
// into a PDF file.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/ir"
	"github.com/wudi/docpdf/layout"
	"github.com/wudi/docpdf/markup"
	"github.com/wudi/docpdf/observability"
)

type options struct {
	in      string
	out     string
	format  string
	strict  bool
	wrap    string
	shape   bool
	fonts   markup.Fonts
	paper   string
	margin  float64
	verbose bool
}

var errTerminal = errors.New("refusing to write PDF to a terminal; use -out")

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "docpdf: %v\n", err)
		os.Exit(2)
	}
	env := environment{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		isTerminal: func() bool { return term.IsTerminal(int(os.Stdout.Fd())) },
	}
	if err := run(context.Background(), opts, env); err != nil {
		fmt.Fprintf(os.Stderr, "docpdf: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("docpdf", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: docpdf [flags] -in <file>\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.in, "in", "", "Input file, - for stdin")
	fs.StringVar(&opts.out, "out", "", "Output PDF, - for stdout (default: input name with .pdf)")
	fs.StringVar(&opts.format, "format", "", "Input format: json, markdown or html (default: from extension)")
	fs.BoolVar(&opts.strict, "strict", false, "Fail instead of starting a new page when content overflows")
	fs.StringVar(&opts.wrap, "wrap", "word", "Line wrapping: word or glyph")
	fs.BoolVar(&opts.shape, "shape", false, "Shape text with HarfBuzz-style shaping")
	regular := fs.String("font", "", "Regular font for markdown/html input")
	bold := fs.String("bold", "", "Bold font for markdown/html input")
	italic := fs.String("italic", "", "Italic font for markdown/html input")
	boldItalic := fs.String("bold-italic", "", "Bold italic font for markdown/html input")
	mono := fs.String("mono", "", "Monospace font for markdown/html input")
	fs.StringVar(&opts.paper, "paper", string(document.PaperA4), "Paper size for markdown/html input")
	fs.Float64Var(&opts.margin, "margin", 72, "Page margin in points for markdown/html input")
	fs.BoolVar(&opts.verbose, "v", false, "Log progress to stderr")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.in == "" {
		if fs.NArg() != 1 {
			fs.Usage()
			return options{}, fmt.Errorf("missing input")
		}
		opts.in = fs.Arg(0)
	}
	if opts.out == "" {
		if opts.in == "-" {
			opts.out = "-"
		} else {
			opts.out = strings.TrimSuffix(opts.in, filepath.Ext(opts.in)) + ".pdf"
		}
	}
	if opts.format == "" {
		opts.format = formatFor(opts.in)
	}
	switch opts.format {
	case "json", "markdown", "html":
	default:
		return options{}, fmt.Errorf("unknown format %q", opts.format)
	}
	switch opts.wrap {
	case "word", "glyph":
	default:
		return options{}, fmt.Errorf("unknown wrap mode %q", opts.wrap)
	}
	opts.fonts = markup.Fonts{
		Regular:    source(*regular),
		Bold:       source(*bold),
		Italic:     source(*italic),
		BoldItalic: source(*boldItalic),
		Mono:       source(*mono),
	}
	return opts, nil
}

func source(path string) document.Source { return document.Source{Path: path} }

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".html", ".htm":
		return "html"
	}
	return "json"
}

type environment struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	isTerminal func() bool
}

func run(ctx context.Context, opts options, env environment) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlogLogger(slog.New(slog.NewTextHandler(env.stderr, &slog.HandlerOptions{Level: level})))

	if opts.out == "-" && env.isTerminal != nil && env.isTerminal() {
		return errTerminal
	}
	doc, err := readDocument(opts, env.stdin)
	if err != nil {
		return err
	}

	policy := layout.OverflowFlow
	if opts.strict {
		policy = layout.OverflowStrict
	}
	wrap := layout.WrapWord
	if opts.wrap == "glyph" {
		wrap = layout.WrapGlyph
	}
	p := ir.New(policy, ir.WithWrap(wrap), ir.WithShaping(opts.shape), ir.WithLogger(logger))

	// Convert before touching the output so a failed run leaves no file behind.
	pdf, err := p.Convert(ctx, doc)
	if err != nil {
		return err
	}
	if opts.out == "-" {
		_, err := pdf.WriteTo(env.stdout)
		return err
	}
	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	n, err := pdf.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	logger.Info("wrote pdf", observability.String("path", opts.out), observability.Int64("bytes", n))
	return nil
}

func readDocument(opts options, stdin io.Reader) (*document.Document, error) {
	var (
		data []byte
		err  error
		dir  string
	)
	if opts.in == "-" {
		data, err = io.ReadAll(stdin)
		dir = "."
	} else {
		data, err = os.ReadFile(opts.in)
		dir = filepath.Dir(opts.in)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if opts.format == "json" {
		return document.Decode(bytes.NewReader(data))
	}

	mo := markup.Options{
		Page:    document.PageConfig{Size: document.PaperSize(opts.paper), Margins: document.Uniform(opts.margin)},
		Fonts:   opts.fonts,
		BaseDir: dir,
	}
	if opts.format == "markdown" {
		return markup.FromMarkdown(data, mo)
	}
	return markup.FromHTML(data, mo)
}
