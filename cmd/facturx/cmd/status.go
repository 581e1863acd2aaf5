package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/facture-electronique/internal/bootstrap"
)

var statusCmd = &cobra.Command{
	Use:   "status <submission-id>",
	Short: "Refresh the portal status of a recorded submission",
	Long: `Ask the portal for the current status of a submission recorded by the
submit command and update the ledger. Needs DATABASE_URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context(), bootstrap.Options{Ledger: true, Portals: true})
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := app.Submissions.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), s, describeSubmission(s))
}
