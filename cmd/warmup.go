package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/internal/auth"
	"github.com/Jasmitsingh01/tiktok/internal/config"
	"github.com/Jasmitsingh01/tiktok/internal/observability"
)

func newWarmupCmd() *cobra.Command {
	var creds auth.Credentials

	warmupCmd := &cobra.Command{
		Use:   "warmup",
		Short: "Run a humanized browsing session on the account",
		Long:  `Logs in (reusing the cached session when possible), then browses the video feed for the configured duration: watching, liking, following, commenting, and scrolling with randomized human-like behavior. Prints the run counters when done.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			components, err := buildComponents(ctx, config.Get())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			summary, err := components.Orchestrator.Warmup(ctx, creds)
			if err != nil {
				logger.Error("Warmup failed", zap.Error(err), zap.String("username", creds.Username))
				return err
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize summary: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	warmupCmd.Flags().StringVarP(&creds.Username, "username", "u", "", "account username (required)")
	warmupCmd.Flags().StringVarP(&creds.Password, "password", "p", "", "account password (required)")
	warmupCmd.Flags().StringVarP(&creds.VerificationEmail, "verification-email", "e", "", "mailbox for verification codes (required)")
	_ = warmupCmd.MarkFlagRequired("username")
	_ = warmupCmd.MarkFlagRequired("password")
	_ = warmupCmd.MarkFlagRequired("verification-email")

	return warmupCmd
}
