package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jhoicas/facture-electronique/internal/bootstrap"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
)

var submitCmd = &cobra.Command{
	Use:   "submit <portal> <invoice.json>",
	Short: "Submit an invoice to an e-invoicing portal",
	Long: `Submit an invoice to chorus-pro, pennylane or sage. The portal must be
configured through the environment (PISTE_CLIENT_ID, PENNYLANE_API_KEY, ...).

When DATABASE_URL is set the attempt is recorded and its id can be given to
the status command.`,
	Args: cobra.ExactArgs(2),
	RunE: runSubmit,
}

var portalsCmd = &cobra.Command{
	Use:   "portals",
	Short: "List the configured portals",
	Args:  cobra.NoArgs,
	RunE:  runPortals,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(portalsCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	f, err := loadFacture(args[1], cmd.InOrStdin())
	if err != nil {
		return err
	}
	app, err := newApp(cmd.Context(), bootstrap.Options{Ledger: true, Portals: true})
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := app.Submissions.Submit(cmd.Context(), args[0], f)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), s, describeSubmission(s))
}

func runPortals(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context(), bootstrap.Options{Portals: true})
	if err != nil {
		return err
	}
	defer app.Close()

	names := app.Submissions.Portals()
	text := strings.Join(names, "\n")
	if len(names) == 0 {
		text = "no portal configured"
	}
	return printResult(cmd.OutOrStdout(), map[string][]string{"portals": names}, text)
}

func describeSubmission(s *entity.Submission) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s -> %s: %s", s.NumeroFacture, s.Portal, s.Status)
	if s.PortalID != "" {
		fmt.Fprintf(&sb, " (portal id %s", s.PortalID)
		if s.PortalStatus != "" {
			fmt.Fprintf(&sb, ", %s", s.PortalStatus)
		}
		sb.WriteString(")")
	}
	if s.ID != "" {
		fmt.Fprintf(&sb, "\nsubmission %s", s.ID)
	}
	return sb.String()
}
