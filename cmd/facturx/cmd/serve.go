package cmd

import (
	"github.com/spf13/cobra"

	_ "github.com/jhoicas/facture-electronique/docs"
	"github.com/jhoicas/facture-electronique/internal/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API on HTTP_HOST:HTTP_PORT (default 0.0.0.0:8080).

Requires JWT_SECRET. Stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context(), bootstrap.Options{Ledger: true, Portals: true})
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Config.Require("JWT_SECRET"); err != nil {
		return err
	}
	return bootstrap.ListenAndServe(app)
}
