package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jhoicas/facture-electronique/internal/bootstrap"
	"github.com/jhoicas/facture-electronique/internal/domain"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file.xml|invoice.json>",
	Short: "Validate a Factur-X XML against the Schematron of a profile",
	Long: `Validate a Factur-X XML file. A .json argument is read as an invoice
model: its XML is generated first, then validated.

Every failed assertion is listed. The exit code is 1 when validation fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

type validateResult struct {
	File     string   `json:"file"`
	Profile  string   `json:"profile"`
	Valid    bool     `json:"valid"`
	Messages []string `json:"messages,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := selectedProfile()
	if err != nil {
		return err
	}
	app, err := newApp(cmd.Context(), bootstrap.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	path := args[0]
	var xml []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err := loadFacture(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if xml, _, err = app.FacturX.GenerateXML(f, p); err != nil {
			return err
		}
	} else if xml, err = os.ReadFile(path); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	res := validateResult{File: path, Profile: p.String(), Valid: true}
	verr := app.FacturX.ValidateXML(cmd.Context(), xml, p)
	var xerr *domain.XSLTValidationError
	switch {
	case verr == nil:
	case errors.As(verr, &xerr):
		res.Valid = false
		res.Messages = xerr.Messages()
	default:
		return verr
	}

	text := fmt.Sprintf("%s: valid %s", path, p)
	if !res.Valid {
		text = fmt.Sprintf("%s: %d failed assertion(s) for %s\n  - %s", path, len(res.Messages), p, strings.Join(res.Messages, "\n  - "))
	}
	if err := printResult(cmd.OutOrStdout(), res, text); err != nil {
		return err
	}
	if !res.Valid {
		return verr
	}
	return nil
}
