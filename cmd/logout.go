package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/internal/config"
	"github.com/Jasmitsingh01/tiktok/internal/observability"
)

func newLogoutCmd() *cobra.Command {
	var username string

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Delete an account's persisted session and clear browser data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			components, err := buildComponents(ctx, config.Get())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			if err := components.Orchestrator.Logout(ctx, username); err != nil {
				logger.Error("Logout failed", zap.Error(err), zap.String("username", username))
				return err
			}

			fmt.Printf("Successfully logged out user: %s\n", username)
			return nil
		},
	}

	logoutCmd.Flags().StringVarP(&username, "username", "u", "", "account username (required)")
	_ = logoutCmd.MarkFlagRequired("username")

	return logoutCmd
}
