package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appfx "github.com/jhoicas/facture-electronique/internal/application/facturx"
	"github.com/jhoicas/facture-electronique/internal/bootstrap"
)

var (
	buildOutput     string
	buildSource     string
	buildKey        string
	buildCert       string
	buildChain      []string
	buildPassphrase string
)

var buildCmd = &cobra.Command{
	Use:   "build <invoice.json>",
	Short: "Build a Factur-X PDF/A-3 from an invoice",
	Long: `Generate and validate the XML, convert the source PDF to PDF/A-3, embed
the XML and save the result. Without --source a PDF is rendered from the
invoice. With --key the document is signed before saving.

The signing passphrase may also come from FACTURX_SIGN_PASSPHRASE.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Destination PDF (required)")
	buildCmd.Flags().StringVarP(&buildSource, "source", "s", "", "Existing PDF to convert instead of rendering one")
	buildCmd.Flags().StringVar(&buildKey, "key", "", "Private key (PEM) or PKCS#12 bundle")
	buildCmd.Flags().StringVar(&buildCert, "cert", "", "Signer certificate (PEM)")
	buildCmd.Flags().StringSliceVar(&buildChain, "chain", nil, "Intermediate certificates (PEM)")
	buildCmd.Flags().StringVar(&buildPassphrase, "passphrase", "", "Key passphrase")
	_ = buildCmd.MarkFlagRequired("output")
}

func runBuild(cmd *cobra.Command, args []string) error {
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

	req := appfx.BuildRequest{
		Facture:   f,
		Profile:   p,
		SourcePDF: buildSource,
		Output:    buildOutput,
	}
	if buildKey != "" {
		pass := buildPassphrase
		if pass == "" {
			pass = os.Getenv("FACTURX_SIGN_PASSPHRASE")
		}
		req.Sign = &appfx.SignRequest{
			Key:        buildKey,
			Cert:       buildCert,
			Chain:      buildChain,
			Passphrase: []byte(pass),
		}
	}

	res, err := app.FacturX.BuildPDF(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), res, fmt.Sprintf("%s written (%s, sha256 %s)", res.Path, res.Profile, res.Digest))
}
