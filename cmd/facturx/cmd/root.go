package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/facture-electronique/internal/bootstrap"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/facturx"
	"github.com/jhoicas/facture-electronique/pkg/config"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	profileName  string
)

var rootCmd = &cobra.Command{
	Use:   "facturx",
	Short: "Generate, validate, embed and submit Factur-X invoices",
	Long: `facturx turns an invoice description (JSON) into a Factur-X document.

Supports:
  - CII XML generation for the MINIMUM, BASIC, EN16931 and EXTENDED profiles
  - Schematron validation (xsltproc)
  - PDF/A-3 conversion (Ghostscript), XML embedding and PAdES signing (pyHanko)
  - Submission to Chorus Pro, Pennylane and SAGE

Examples:
  # Print the EN16931 XML of an invoice
  facturx generate invoice.json

  # Validate an existing XML against the BASIC Schematron
  facturx validate factur-x.xml --profile basic

  # Build a signed PDF/A-3
  facturx build invoice.json -o FA-2024-001.pdf --key key.pem --cert cert.pem

  # Send to Chorus Pro and follow the status
  facturx submit chorus-pro invoice.json
  facturx status <submission-id>`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "Output format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", facturx.ProfileEN16931.String(), "Factur-X profile (minimum, basic, en16931, extended)")
}

// newApp loads the configuration and wires the pipeline. Logs go to stderr so
// stdout only carries command output.
func newApp(ctx context.Context, opts bootstrap.Options) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.App.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: level, Out: os.Stderr})
	return bootstrap.New(ctx, cfg, log, opts)
}

func selectedProfile() (facturx.Profile, error) {
	return facturx.ParseProfile(profileName)
}

// loadFacture reads an invoice model from a JSON file ("-" reads stdin).
func loadFacture(path string, stdin io.Reader) (*entity.Facture, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read invoice: %w", err)
	}
	var f entity.Facture
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse invoice %s: %w", path, err)
	}
	return &f, nil
}

// printResult writes v as indented JSON when --format json, text otherwise.
func printResult(w io.Writer, v any, text string) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
