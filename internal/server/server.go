package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rezonia/facturx/internal/logger"
	"github.com/rezonia/facturx/internal/model"
	"github.com/rezonia/facturx/internal/processor"
	"github.com/rezonia/facturx/internal/profile"
	"github.com/rezonia/facturx/internal/signature"
	"github.com/rezonia/facturx/internal/signature/pdf"
	"github.com/rezonia/facturx/internal/signature/trust"
	"github.com/rezonia/facturx/internal/signature/xml"
	"github.com/rezonia/facturx/internal/tax"
)

const (
	requestTimeout = 30 * time.Second
	verifyTimeout  = 60 * time.Second
	maxEmbedMemory = 32 << 20

	requestIDHeader = "X-Request-ID"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config           *Config
	router           *gin.Engine
	pipeline         *processor.Pipeline
	verifierRegistry *signature.VerifierRegistry
	log              zerolog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithPipeline sets the pipeline used by the generate endpoints
func WithPipeline(p *processor.Pipeline) Option {
	return func(s *Server) {
		s.pipeline = p
	}
}

// WithVerifiers sets the registry used by the verify endpoint
func WithVerifiers(r *signature.VerifierRegistry) Option {
	return func(s *Server) {
		s.verifierRegistry = r
	}
}

// WithLogger sets the request logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer creates a new API server. Without options it generates with
// line rounding, does not sign, and verifies against an empty trust store.
func NewServer(config *Config, opts ...Option) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: config,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.pipeline == nil {
		s.pipeline = processor.NewPipeline()
	}
	if s.verifierRegistry == nil {
		ts := trust.NewTrustStore()
		s.verifierRegistry = signature.NewVerifierRegistry(
			xml.NewXMLVerifier(ts),
			pdf.NewPDFVerifier(ts),
		)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.log))

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.GET("/profiles", s.handleProfiles)

		v1.POST("/summary", s.handleSummary)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/generate", s.handleGenerate)
		v1.POST("/embed", s.handleEmbed)

		v1.POST("/verify", s.handleVerify)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	return s.HTTPServer().ListenAndServe()
}

// HTTPServer returns an http.Server bound to the configured address, for
// callers that manage shutdown themselves
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID != "" {
			c.Header(requestIDHeader, reqID)
		}
		c.Next()

		l := logger.WithRequestID(log, reqID)
		status := c.Writer.Status()
		event := l.Info()
		if status >= http.StatusInternalServerError {
			event = l.Error()
		} else if status >= http.StatusBadRequest {
			event = l.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes", c.Writer.Size()).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleProfiles(c *gin.Context) {
	out := make([]ProfileOutput, 0, len(model.Profiles))
	for _, p := range model.Profiles {
		pol, _ := profile.PolicyFor(p)
		item := ProfileOutput{
			Profile:   string(p),
			Guideline: p.GuidelineURN(),
			LineItems: p.HasLineItems(),
			Mandatory: fieldNames(pol.Mandatory),
			Forbidden: fieldNames(pol.Forbidden),
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"profiles": out})
}

func fieldNames(fields []profile.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, string(f))
	}
	return out
}

// readInvoice decodes the request body as JSON or YAML. It writes the error
// response itself and returns nil when the body is unusable.
func (s *Server) readInvoice(c *gin.Context) *model.Invoice {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return nil
	}

	inv, err := model.DecodeInvoice(bytes.NewReader(body), processor.DetectFormat(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid invoice",
			Stage:   string(processor.StageDecode),
			Details: []string{err.Error()},
		})
		return nil
	}
	return inv
}

func (s *Server) handleSummary(c *gin.Context) {
	mode := s.pipeline.Rounding()
	if q := c.Query("rounding"); q != "" {
		parsed, err := tax.ParseRoundingMode(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		mode = parsed
	}

	inv := s.readInvoice(c)
	if inv == nil {
		return
	}

	summary := tax.Compute(inv, mode)
	if err := summary.Check(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Stage: string(processor.StageCompute),
		})
		return
	}

	c.JSON(http.StatusOK, SummaryResponse{
		Invoice:  inv.Header.Number,
		Profile:  string(inv.Profile),
		Currency: inv.CurrencyCode(),
		Rounding: string(mode),
		Summary:  summary,
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	inv := s.readInvoice(c)
	if inv == nil {
		return
	}

	violations := s.pipeline.Validate(inv)
	response := ValidationResponse{
		Valid:      len(violations) == 0,
		Profile:    string(inv.Profile),
		Violations: violationOutputs(violations),
	}
	if len(violations) > 0 {
		c.JSON(http.StatusUnprocessableEntity, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) generate(c *gin.Context) (*processor.Result, bool) {
	inv := s.readInvoice(c)
	if inv == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result := s.pipeline.Generate(ctx, inv)
	if !result.OK() {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:      result.Error.Error(),
			Stage:      string(result.Stage),
			Violations: violationOutputs(result.Violations),
			Warnings:   result.Warnings,
		})
		return nil, false
	}
	return result, true
}

func (s *Server) handleGenerate(c *gin.Context) {
	result, ok := s.generate(c)
	if !ok {
		return
	}

	for _, w := range result.Warnings {
		c.Writer.Header().Add("X-Facturx-Warning", w)
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", result.XML)
}

// handleEmbed takes a multipart form with a "pdf" file and an "invoice"
// file, generates the XML and returns the PDF with it attached
func (s *Server) handleEmbed(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxEmbedMemory); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "expected multipart form with pdf and invoice files"})
		return
	}

	pdfData, err := formFile(c, "pdf")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	invData, err := formFile(c, "invoice")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result := s.pipeline.ProcessBytes(ctx, invData)
	if !result.OK() {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:      result.Error.Error(),
			Stage:      string(result.Stage),
			Violations: violationOutputs(result.Violations),
		})
		return
	}

	var out bytes.Buffer
	if err := s.pipeline.Embed(bytes.NewReader(pdfData), &out, result.XML, c.PostForm("name")); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "embed failed", Details: []string{err.Error()}})
		return
	}
	c.Data(http.StatusOK, "application/pdf", out.Bytes())
}

func formFile(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, errors.New("missing form file " + field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) handleVerify(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return
	}

	verifier, err := s.verifierRegistry.Detect(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file format for signature verification"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), verifyTimeout)
	defer cancel()

	result, err := verifier.Verify(ctx, body)
	if err != nil {
		resp := gin.H{
			"error":   "signature verification failed",
			"details": err.Error(),
		}
		if result != nil {
			resp["warnings"] = result.Warnings
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}

	response := VerifyResponse{
		Valid:          result.Valid,
		SignatureFound: result.SignatureFound,
		SignatureValid: result.SignatureValid,
		CertChainValid: result.CertChainValid,
		NotRevoked:     result.NotRevoked,
		Format:         result.Format,
		DocumentID:     result.DocumentID,
		Guideline:      result.Guideline,
		Attachment:     result.Attachment,
		Warnings:       result.Warnings,
		Errors:         result.Errors,
	}

	if result.Signer != nil {
		response.Signer = &SignerInfoOutput{
			Name:         result.Signer.Name,
			Organization: result.Signer.Organization,
			SerialNumber: result.Signer.SerialNumber,
			Issuer:       result.Signer.Issuer,
			ValidFrom:    &result.Signer.ValidFrom,
			ValidTo:      &result.Signer.ValidTo,
		}
	}

	if result.Valid {
		c.JSON(http.StatusOK, response)
	} else {
		c.JSON(http.StatusUnprocessableEntity, response)
	}
}
