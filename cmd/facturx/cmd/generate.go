package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/facture-electronique/internal/bootstrap"
)

var generateOutput string

var generateCmd = &cobra.Command{
	Use:   "generate <invoice.json>",
	Short: "Generate the Factur-X XML of an invoice",
	Long: `Generate the CII XML of an invoice for the selected profile.

The XML goes to stdout unless --output is set, in which case the file is
written and its canonical digest is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Write the XML to this file")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	p, err := selectedProfile()
	if err != nil {
		return err
	}
	f, err := loadFacture(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	app, err := newApp(cmd.Context(), bootstrap.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	xml, digest, err := app.FacturX.GenerateXML(f, p)
	if err != nil {
		return err
	}
	if generateOutput == "" {
		_, err = cmd.OutOrStdout().Write(xml)
		return err
	}
	if err := os.WriteFile(generateOutput, xml, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", generateOutput, err)
	}
	return printResult(cmd.OutOrStdout(), map[string]string{
		"path":    generateOutput,
		"profile": p.String(),
		"digest":  digest,
	}, fmt.Sprintf("%s written (%s, sha256 %s)", generateOutput, p, digest))
}
