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

func newLoginCmd() *cobra.Command {
	var creds auth.Credentials

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate an account and persist its session",
		Long:  `Logs the account in, solving the audio captcha and the email verification gate when they appear. A usable persisted session skips the credential flow entirely. The resulting session snapshot is stored for later runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			components, err := buildComponents(ctx, config.Get())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			result, err := components.Orchestrator.Login(ctx, creds)
			if err != nil {
				logger.Error("Login failed", zap.Error(err), zap.String("username", creds.Username))
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize result: %w", err)
			}
			fmt.Println(string(out))

			if !result.Success {
				return fmt.Errorf("login failed: %s", result.Message)
			}
			return nil
		},
	}

	loginCmd.Flags().StringVarP(&creds.Username, "username", "u", "", "account username (required)")
	loginCmd.Flags().StringVarP(&creds.Password, "password", "p", "", "account password (required)")
	loginCmd.Flags().StringVarP(&creds.VerificationEmail, "verification-email", "e", "", "mailbox for verification codes (required)")
	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")
	_ = loginCmd.MarkFlagRequired("verification-email")

	return loginCmd
}
