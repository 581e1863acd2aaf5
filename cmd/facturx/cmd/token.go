package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/facture-electronique/pkg/config"
	"github.com/jhoicas/facture-electronique/pkg/jwt"
)

var (
	tokenRole    string
	tokenMinutes int
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue an API access token",
	Long: `Issue a JWT for the HTTP API, signed with JWT_SECRET.

Roles: admin, emitter (may build and submit), viewer (read-only).`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenRole, "role", jwt.RoleEmitter, "Role claim (admin, emitter, viewer)")
	tokenCmd.Flags().IntVar(&tokenMinutes, "expires", 0, "Lifetime in minutes (default JWT_EXPIRATION_MINUTES)")
}

func runToken(cmd *cobra.Command, args []string) error {
	switch tokenRole {
	case jwt.RoleAdmin, jwt.RoleEmitter, jwt.RoleViewer:
	default:
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Require("JWT_SECRET"); err != nil {
		return err
	}
	minutes := tokenMinutes
	if minutes <= 0 {
		minutes = cfg.JWT.Expiration
	}
	tok, err := jwt.Generate(cfg.JWT.Secret, args[0], tokenRole, cfg.JWT.Issuer, minutes)
	if err != nil {
		return err
	}
	expires := time.Now().Add(time.Duration(minutes) * time.Minute).UTC()
	return printResult(cmd.OutOrStdout(), map[string]any{
		"token":      tok,
		"user_id":    args[0],
		"role":       tokenRole,
		"expires_at": expires,
	}, tok)
}
