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

func newAnalyticsCmd() *cobra.Command {
	var (
		creds  auth.Credentials
		postID string
	)

	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Fetch studio analytics for a post",
		Long:  `Logs in, opens the studio analytics page for the given post, and extracts the metrics from a full-page screenshot via the vision service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			components, err := buildComponents(ctx, config.Get())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			metrics, err := components.Orchestrator.Analytics(ctx, creds, postID)
			if err != nil {
				logger.Error("Analytics failed", zap.Error(err), zap.String("post_id", postID))
				return err
			}

			out, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize analytics: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	analyticsCmd.Flags().StringVarP(&creds.Username, "username", "u", "", "account username (required)")
	analyticsCmd.Flags().StringVarP(&creds.Password, "password", "p", "", "account password (required)")
	analyticsCmd.Flags().StringVarP(&creds.VerificationEmail, "verification-email", "e", "", "mailbox for verification codes (required)")
	analyticsCmd.Flags().StringVar(&postID, "post-id", "", "ID of the post to analyze (required)")
	_ = analyticsCmd.MarkFlagRequired("username")
	_ = analyticsCmd.MarkFlagRequired("password")
	_ = analyticsCmd.MarkFlagRequired("verification-email")
	_ = analyticsCmd.MarkFlagRequired("post-id")

	return analyticsCmd
}
