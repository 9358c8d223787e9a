package facturxlib

import (
	"context"
	"errors"
	"io"

	"github.com/rezonia/facturx/internal/processor"
	"github.com/rezonia/facturx/internal/schema"
	"github.com/rezonia/facturx/internal/signature/xml"
	"github.com/rezonia/facturx/internal/tax"
)

// Output is a generated document
type Output struct {
	XML      []byte
	Summary  Summary
	Signed   bool
	Warnings []string
}

// GenerationError reports the step at which generation stopped
type GenerationError struct {
	Stage      string
	Violations []*ProfileViolation
	Err        error
}

func (e *GenerationError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator turns invoices into Factur-X XML
type Generator struct {
	pipeline *processor.Pipeline
	schema   *schema.Validator
}

// NewGenerator creates a generator. It fails on an unknown rounding mode
// and when the signing key or the schema directory cannot be loaded.
func NewGenerator(opts GeneratorOptions) (*Generator, error) {
	rounding, err := tax.ParseRoundingMode(string(opts.Rounding))
	if err != nil {
		return nil, err
	}
	pipeOpts := []processor.Option{processor.WithRounding(rounding)}
	g := &Generator{}

	if opts.SignCertFile != "" || opts.SignKeyFile != "" {
		signer, err := xml.LoadXMLSigner(opts.SignCertFile, opts.SignKeyFile)
		if err != nil {
			return nil, err
		}
		pipeOpts = append(pipeOpts, processor.WithSigner(signer))
	}

	if opts.XSDDir != "" {
		v, err := schema.New(opts.XSDDir)
		if err != nil {
			return nil, err
		}
		g.schema = v
		pipeOpts = append(pipeOpts, processor.WithSchemaValidator(v))
	}

	g.pipeline = processor.NewPipeline(pipeOpts...)
	return g, nil
}

// NewDefaultGenerator creates a generator with default options
func NewDefaultGenerator() *Generator {
	g, _ := NewGenerator(DefaultGeneratorOptions())
	return g
}

// Close releases parsed schemas
func (g *Generator) Close() {
	if g.schema != nil {
		g.schema.Free()
	}
}

// Generate produces the XML of one invoice
func (g *Generator) Generate(ctx context.Context, inv *Invoice) (*Output, error) {
	return toOutput(g.pipeline.Generate(ctx, inv))
}

// GenerateFrom decodes a JSON or YAML invoice and generates it
func (g *Generator) GenerateFrom(ctx context.Context, r io.Reader, format string) (*Output, error) {
	return toOutput(g.pipeline.Process(ctx, r, format))
}

// Summarize computes totals and the VAT breakdown without profile checks
func (g *Generator) Summarize(inv *Invoice) (Summary, error) {
	return g.pipeline.Summarize(inv)
}

// Validate returns every profile violation of inv
func (g *Generator) Validate(inv *Invoice) []*ProfileViolation {
	return g.pipeline.Validate(inv)
}

// Embed attaches generated XML to a PDF as factur-x.xml
func (g *Generator) Embed(pdf io.ReadSeeker, w io.Writer, xmlData []byte) error {
	return g.pipeline.Embed(pdf, w, xmlData, "")
}

func toOutput(res *processor.Result) (*Output, error) {
	if !res.OK() {
		err := res.Error
		if err == nil {
			err = errors.New("generation incomplete")
		}
		return nil, &GenerationError{Stage: string(res.Stage), Violations: res.Violations, Err: err}
	}
	return &Output{
		XML:      res.XML,
		Summary:  res.Summary,
		Signed:   res.Signed,
		Warnings: res.Warnings,
	}, nil
}
