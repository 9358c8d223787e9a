package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx/internal/logger"
	"github.com/rezonia/facturx/internal/processor"
	"github.com/rezonia/facturx/internal/schema"
	"github.com/rezonia/facturx/internal/server"
	"github.com/rezonia/facturx/internal/signature/trust"
	"github.com/rezonia/facturx/internal/signature/xml"
)

var (
	serverAddr      string
	serverDebug     bool
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for Factur-X generation.

The API provides endpoints for:
  - GET  /api/v1/profiles   - Profiles and their field policy
  - POST /api/v1/summary    - Totals and VAT breakdown (?rounding=line|global)
  - POST /api/v1/validate   - Profile check
  - POST /api/v1/generate   - Factur-X XML
  - POST /api/v1/embed      - Factur-X PDF (multipart: pdf, invoice)
  - POST /api/v1/verify     - Signature verification (XML or PDF)
  - GET  /health            - Health check

Settings come from the environment (FACTURX_*); flags override them.

Examples:
  # Start server on the configured address
  facturx serve

  # Start on a custom port in debug mode
  facturx serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (env: FACTURX_ADDRESS)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 0, "HTTP read timeout (env: FACTURX_READ_TIMEOUT)")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 0, "HTTP write timeout (env: FACTURX_WRITE_TIMEOUT)")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")
}

func serverConfig() *server.Config {
	config := &server.Config{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Debug:        cfg.Debug || serverDebug,
	}
	if serverAddr != "" {
		config.Address = serverAddr
	}
	if readTimeout > 0 {
		config.ReadTimeout = readTimeout
	}
	if writeTimeout > 0 {
		config.WriteTimeout = writeTimeout
	}
	return config
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := []processor.Option{
		processor.WithRounding(cfg.RoundingMode()),
		processor.WithLogger(logger.WithComponent("pipeline")),
	}

	if cfg.XSDDir != "" {
		v, err := schema.New(cfg.XSDDir)
		if err != nil {
			return err
		}
		defer v.Free()
		opts = append(opts, processor.WithSchemaValidator(v))
	}

	if cfg.Signing.Enabled() {
		signer, err := xml.LoadXMLSigner(cfg.Signing.CertFile, cfg.Signing.KeyFile)
		if err != nil {
			return err
		}
		opts = append(opts, processor.WithSigner(signer))
	}

	trustStore, err := loadTrustStore("", trust.WithSoftFail())
	if err != nil {
		return err
	}

	config := serverConfig()
	srv := server.NewServer(config,
		server.WithPipeline(processor.NewPipeline(opts...)),
		server.WithVerifiers(newVerifierRegistry(trustStore)),
		server.WithLogger(logger.WithComponent("http")),
	)
	httpServer := srv.HTTPServer()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", config.Address).
			Bool("signing", cfg.Signing.Enabled()).
			Bool("schema", cfg.XSDDir != "").
			Msg("starting server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
