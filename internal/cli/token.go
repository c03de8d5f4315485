package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/domain"
)

func tokenCmd() *cobra.Command {
	var (
		user bool
		role string
		ttl  int
	)

	cmd := &cobra.Command{
		Use:   "token <subject-id>",
		Short: "Issue a bearer token for an internal caller",
		Long: `Sign a bearer token with AUTH_JWT_SECRET. Tokens are SERVICE tokens unless
--user is given; automatic escalation triggers and routing need a SERVICE token.

Examples:
  workflowctl token sla-poller
  workflowctl token u-42 --user --role SUPERVISOR --ttl 15`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			subject := domain.SubjectTypeService
			if user {
				subject = domain.SubjectTypeUser
			}
			var rolePtr *domain.Role
			if role != "" {
				parsed, err := domain.ParseRole(role)
				if err != nil {
					return err
				}
				rolePtr = &parsed
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTLMinutes
			}

			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl)
			signed, expiresAt, err := tokens.GenerateToken(args[0], subject, rolePtr)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s token for %s, expires %s\n",
				color.GreenString("✓"), subject, args[0], expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "issue a USER token instead of a SERVICE token")
	cmd.Flags().StringVar(&role, "role", "", "role claim (JUNIOR, SENIOR, SUPERVISOR, HEAD_OF_IT)")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (default AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	return cmd
}
