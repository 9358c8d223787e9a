// Package processor runs invoice generation end to end: policy check, tax
// summary, CII assembly, then the optional schema check and signature.
package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/rezonia/facturx/internal/attach"
	"github.com/rezonia/facturx/internal/cii"
	"github.com/rezonia/facturx/internal/model"
	"github.com/rezonia/facturx/internal/profile"
	"github.com/rezonia/facturx/internal/signature"
	"github.com/rezonia/facturx/internal/tax"
)

// Stage names a pipeline step
type Stage string

const (
	StageDecode   Stage = "decode"
	StageValidate Stage = "validate"
	StageCompute  Stage = "compute"
	StageAssemble Stage = "assemble"
	StageSchema   Stage = "schema"
	StageSign     Stage = "sign"
	StageDone     Stage = "done"
)

// ErrNilInvoice is returned for a nil invoice
var ErrNilInvoice = errors.New("invoice is nil")

// SchemaValidator checks generated XML against the schema of a profile
// and document kind
type SchemaValidator interface {
	Validate(ctx context.Context, kind model.DocumentKind, p model.Profile, data []byte) error
}

// Result holds the outcome of one invoice
type Result struct {
	Invoice    *model.Invoice
	Summary    tax.Summary
	XML        []byte
	Signed     bool
	Warnings   []string
	Violations []*model.ProfileViolation
	// Stage is StageDone on success, otherwise the step that failed
	Stage Stage
	Error error
}

// OK reports whether the result carries XML
func (r *Result) OK() bool {
	return r.Error == nil && r.Stage == StageDone
}

func (r *Result) fail(stage Stage, err error) *Result {
	r.Stage = stage
	r.Error = err
	r.XML = nil
	r.Signed = false
	return r
}

// Pipeline generates Factur-X XML from invoices
type Pipeline struct {
	rounding tax.RoundingMode
	signer   signature.Signer
	schema   SchemaValidator
	embedder *attach.Embedder
	log      zerolog.Logger

	badRounding tax.RoundingMode
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRounding sets the rounding mode. Empty keeps the current mode;
// unknown modes fall back to tax.RoundLine and are logged by NewPipeline.
func WithRounding(mode tax.RoundingMode) Option {
	return func(p *Pipeline) {
		if mode == "" {
			return
		}
		parsed, err := tax.ParseRoundingMode(string(mode))
		if err != nil {
			p.rounding = tax.RoundLine
			p.badRounding = mode
			return
		}
		p.rounding = parsed
		p.badRounding = ""
	}
}

// WithSigner signs every generated document
func WithSigner(s signature.Signer) Option {
	return func(p *Pipeline) {
		p.signer = s
	}
}

// WithSchemaValidator checks every generated document before signing
func WithSchemaValidator(v SchemaValidator) Option {
	return func(p *Pipeline) {
		p.schema = v
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// NewPipeline creates a pipeline. By default it rounds per line, does not
// sign, skips schema validation and logs nothing.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		rounding: tax.RoundLine,
		embedder: attach.NewEmbedder(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.badRounding != "" {
		p.log.Warn().Str("rounding", string(p.badRounding)).Msg("unknown rounding mode, rounding per line")
	}
	return p
}

// Rounding returns the configured rounding mode
func (p *Pipeline) Rounding() tax.RoundingMode {
	return p.rounding
}

// Signs reports whether a signer is configured
func (p *Pipeline) Signs() bool {
	return p.signer != nil
}

// Summarize computes the monetary summary of inv without checking its
// profile
func (p *Pipeline) Summarize(inv *model.Invoice) (tax.Summary, error) {
	if inv == nil {
		return tax.Summary{}, ErrNilInvoice
	}
	s := tax.Compute(inv, p.rounding)
	if err := s.Check(); err != nil {
		return s, fmt.Errorf("summary: %w", err)
	}
	return s, nil
}

// Validate returns every profile violation of inv
func (p *Pipeline) Validate(inv *model.Invoice) []*model.ProfileViolation {
	return profile.Violations(inv)
}

// Generate validates, totals and assembles inv, then runs the schema check
// and signature when configured. No XML is returned on failure.
func (p *Pipeline) Generate(ctx context.Context, inv *model.Invoice) *Result {
	result := &Result{Invoice: inv}
	if inv == nil {
		return result.fail(StageValidate, ErrNilInvoice)
	}
	log := p.log.With().Str("invoice", inv.Header.Number).Str("profile", string(inv.Profile)).Logger()

	if err := ctx.Err(); err != nil {
		return result.fail(StageValidate, err)
	}

	result.Violations = profile.Violations(inv)
	if len(result.Violations) > 0 {
		log.Warn().Int("violations", len(result.Violations)).Err(result.Violations[0]).Msg("profile check failed")
		return result.fail(StageValidate, result.Violations[0])
	}
	log.Debug().Int("lines", len(inv.Lines)).Msg("profile check passed")

	summary, err := p.Summarize(inv)
	if err != nil {
		return result.fail(StageCompute, err)
	}
	result.Summary = summary
	result.Warnings = warnings(inv, summary)
	log.Debug().
		Int("buckets", len(summary.Buckets)).
		Str("grand_total", summary.GrandTotal.StringFixed(2)).
		Str("rounding", string(p.rounding)).
		Msg("summary computed")

	result.XML = cii.BuildXML(inv, summary)
	log.Debug().Int("bytes", len(result.XML)).Msg("document assembled")

	if p.schema != nil {
		if err := p.schema.Validate(ctx, inv.DocumentKind(), inv.Profile, result.XML); err != nil {
			log.Warn().Err(err).Msg("schema check failed")
			return result.fail(StageSchema, err)
		}
		log.Debug().Msg("schema check passed")
	}

	if p.signer != nil {
		signed, err := p.signer.Sign(result.XML)
		if err != nil {
			log.Warn().Err(err).Msg("signing failed")
			return result.fail(StageSign, err)
		}
		result.XML = signed
		result.Signed = true
		log.Debug().Int("bytes", len(signed)).Msg("document signed")
	}

	result.Stage = StageDone
	return result
}

// Process decodes an invoice in the given format and generates it
func (p *Pipeline) Process(ctx context.Context, r io.Reader, format string) *Result {
	inv, err := model.DecodeInvoice(r, format)
	if err != nil {
		return (&Result{}).fail(StageDecode, err)
	}
	return p.Generate(ctx, inv)
}

// ProcessBytes detects the format of data and generates it
func (p *Pipeline) ProcessBytes(ctx context.Context, data []byte) *Result {
	return p.Process(ctx, bytes.NewReader(data), DetectFormat(data))
}

// Embed attaches generated XML to a PDF under name. When name is empty it
// is orderx.xml for an Order-X document and factur-x.xml otherwise.
func (p *Pipeline) Embed(pdf io.ReadSeeker, w io.Writer, xmlData []byte, name string) error {
	if name == "" {
		name = AttachmentName(xmlData)
	}
	if err := p.embedder.Embed(pdf, w, xmlData, name); err != nil {
		p.log.Warn().Err(err).Msg("embed failed")
		return err
	}
	p.log.Debug().Int("bytes", len(xmlData)).Str("name", name).Msg("xml embedded")
	return nil
}

// AttachmentName returns the conventional attachment name for xmlData
func AttachmentName(xmlData []byte) string {
	if _, kind, _ := cii.DetectDocument(xmlData); kind == model.KindOrder {
		return attach.FilenameOrderX
	}
	return attach.FilenameFacturX
}

// DetectFormat returns model.FormatJSON for content starting with a brace
// or bracket and model.FormatYAML otherwise
func DetectFormat(data []byte) string {
	trimmed := bytes.TrimLeft(data, "\xef\xbb\xbf \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return model.FormatJSON
	}
	return model.FormatYAML
}

// warnings lists non-fatal observations about a valid invoice
func warnings(inv *model.Invoice, s tax.Summary) []string {
	var out []string
	if s.TaxBasis.IsNegative() {
		out = append(out, fmt.Sprintf("tax basis is negative (%s)", s.TaxBasis.StringFixed(2)))
	}
	if !inv.Profile.HasLineItems() && len(inv.Lines) > 0 {
		out = append(out, fmt.Sprintf("profile %s carries no line items; %d lines only feed the totals", inv.Profile, len(inv.Lines)))
	}
	if inv.DefaultTax == nil {
		for _, ac := range inv.AllowanceCharges {
			if !ac.HasTaxOverride() {
				out = append(out, "document allowance/charge without tax override uses the 0% STANDARD fallback")
				break
			}
		}
	}
	return out
}
