// Package ir drives a conversion: validate, lay out, assemble. Each call
// owns its resource catalog and object numbering, so independent
// conversions may run concurrently.
package ir

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/docpdf/assembler"
	"github.com/wudi/docpdf/document"
	"github.com/wudi/docpdf/images"
	"github.com/wudi/docpdf/layout"
	"github.com/wudi/docpdf/observability"
	"github.com/wudi/docpdf/resources"
	"github.com/wudi/docpdf/writer"
)

// Stage names the pipeline step a ConversionError comes from.
type Stage string

const (
	StageConfigure Stage = "configure"
	StageValidate  Stage = "validate"
	StageLayout    Stage = "layout"
	StageAssemble  Stage = "assemble"
	StageWrite     Stage = "write"
)

type ConversionError struct {
	Stage Stage
	Err   error
}

func (e *ConversionError) Error() string { return fmt.Sprintf("convert: %s: %v", e.Stage, e.Err) }
func (e *ConversionError) Unwrap() error { return e.Err }

// StageOf returns the stage of a ConversionError in err's chain.
func StageOf(err error) (Stage, bool) {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Stage, true
	}
	return "", false
}

type Config struct {
	Overflow    layout.OverflowPolicy
	Wrap        layout.WrapMode
	Shaping     bool
	LayerName   string
	SubsetFonts bool
	// MaxImageDimension downsamples larger images. Zero keeps them as is.
	MaxImageDimension int
	// Loader replaces the loader built from the document's declarations.
	Loader resources.Loader
	Writer writer.Config
	Logger observability.Logger
	Tracer observability.Tracer
}

// DefaultConfig compresses content streams and subsets fonts. The overflow
// policy has no default and must be given.
func DefaultConfig(policy layout.OverflowPolicy) Config {
	return Config{
		Overflow:    policy,
		SubsetFonts: true,
		Writer:      writer.DefaultConfig(),
	}
}

type Option func(*Config)

func WithWrap(mode layout.WrapMode) Option     { return func(c *Config) { c.Wrap = mode } }
func WithShaping(enabled bool) Option          { return func(c *Config) { c.Shaping = enabled } }
func WithLayerName(name string) Option         { return func(c *Config) { c.LayerName = name } }
func WithSubsetFonts(enabled bool) Option      { return func(c *Config) { c.SubsetFonts = enabled } }
func WithMaxImageDimension(px int) Option      { return func(c *Config) { c.MaxImageDimension = px } }
func WithLoader(l resources.Loader) Option     { return func(c *Config) { c.Loader = l } }
func WithWriterConfig(w writer.Config) Option  { return func(c *Config) { c.Writer = w } }
func WithLogger(l observability.Logger) Option { return func(c *Config) { c.Logger = l } }
func WithTracer(t observability.Tracer) Option { return func(c *Config) { c.Tracer = t } }

type Pipeline struct {
	cfg    Config
	logger observability.Logger
	tracer observability.Tracer
}

// New builds a pipeline from DefaultConfig(policy) and opts.
func New(policy layout.OverflowPolicy, opts ...Option) *Pipeline {
	cfg := DefaultConfig(policy)
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) *Pipeline {
	p := &Pipeline{cfg: cfg, logger: observability.OrNop(cfg.Logger), tracer: cfg.Tracer}
	if p.tracer == nil {
		p.tracer = observability.NopTracer()
	}
	return p
}

func (p *Pipeline) Config() Config { return p.cfg }

func (p *Pipeline) layoutConfig() layout.Config {
	return layout.Config{
		Overflow:  p.cfg.Overflow,
		Wrap:      p.cfg.Wrap,
		Shaping:   p.cfg.Shaping,
		LayerName: p.cfg.LayerName,
		Logger:    p.logger,
	}
}

// Convert validates, lays out and assembles doc, stopping at the first
// failing stage. ctx carries tracing spans only; conversions are not
// cancellable.
func (p *Pipeline) Convert(ctx context.Context, doc *document.Document) (*writer.Document, error) {
	ctx, span := p.tracer.StartSpan(ctx, observability.SpanConvert)
	defer span.Finish()
	out, err := p.convert(ctx, doc, span)
	if err != nil {
		span.SetError(err)
		p.logger.Error("conversion failed", observability.Error("error", err))
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) convert(ctx context.Context, doc *document.Document, span observability.Span) (*writer.Document, error) {
	lcfg := p.layoutConfig()
	if err := lcfg.Validate(); err != nil {
		return nil, &ConversionError{Stage: StageConfigure, Err: err}
	}

	var valid *document.Validated
	err := p.stage(ctx, observability.SpanValidate, func(observability.Span) (err error) {
		valid, err = document.Validate(doc)
		return err
	})
	if err != nil {
		return nil, &ConversionError{Stage: StageValidate, Err: err}
	}

	loader := p.cfg.Loader
	if loader == nil {
		sl := resources.NewSourceLoader()
		sl.Images = images.Options{MaxDimension: p.cfg.MaxImageDimension}
		sl.RegisterDocument(doc)
		loader = sl
	}
	cat := resources.NewCatalog(loader, resources.WithLogger(p.logger))

	var plan *layout.Plan
	err = p.stage(ctx, observability.SpanLayout, func(s observability.Span) (err error) {
		plan, err = layout.Layout(valid, cat, lcfg)
		if err == nil {
			s.SetTag(observability.TagPageCount, len(plan.Pages))
			s.SetTag(observability.TagFontCount, len(cat.Fonts()))
			s.SetTag(observability.TagImageCount, len(cat.Images()))
		}
		return err
	})
	if err != nil {
		return nil, &ConversionError{Stage: StageLayout, Err: err}
	}

	var out *writer.Document
	err = p.stage(ctx, observability.SpanAssemble, func(s observability.Span) (err error) {
		out, err = assembler.Assemble(plan, cat, assembler.Options{
			Writer:      p.cfg.Writer,
			Metadata:    valid.Metadata,
			Language:    valid.Language,
			SubsetFonts: p.cfg.SubsetFonts,
			Logger:      p.logger,
		})
		if err == nil {
			s.SetTag(observability.TagObjectCount, out.Len())
		}
		return err
	})
	if err != nil {
		return nil, &ConversionError{Stage: StageAssemble, Err: err}
	}
	span.SetTag(observability.TagPageCount, len(plan.Pages))
	p.logger.Info("document converted",
		observability.Int("pages", len(plan.Pages)),
		observability.Int("fonts", len(cat.Fonts())),
		observability.Int("images", len(cat.Images())),
		observability.Int("objects", out.Len()))
	return out, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(observability.Span) error) error {
	_, span := p.tracer.StartSpan(ctx, name)
	defer span.Finish()
	err := fn(span)
	if err != nil {
		span.SetError(err)
	}
	return err
}

// Write converts doc and serializes it to w.
func (p *Pipeline) Write(ctx context.Context, doc *document.Document, w io.Writer) (int64, error) {
	out, err := p.Convert(ctx, doc)
	if err != nil {
		return 0, err
	}
	var n int64
	err = p.stage(ctx, observability.SpanWrite, func(s observability.Span) (err error) {
		n, err = out.WriteTo(w)
		s.SetTag(observability.TagOutputBytes, n)
		return err
	})
	if err != nil {
		return n, &ConversionError{Stage: StageWrite, Err: err}
	}
	return n, nil
}
