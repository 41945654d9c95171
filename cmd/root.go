package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/internal/config"
	"github.com/Jasmitsingh01/tiktok/internal/observability"
)

// Version is stamped by the build.
var Version = "dev"

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "tiktok",
	Short:   "Browser automation for TikTok account sessions.",
	Long:    `Drives a headless browser against TikTok: login with session caching, audio captcha solving, email verification, behavioral account warmup, and screenshot-based post analytics.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1. Initialize configuration loading (Viper)
		if err := initializeConfig(); err != nil {
			basicLogger, _ := zap.NewDevelopment()
			basicLogger.Error("Failed to initialize configuration", zap.Error(err))
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		// 2. Unmarshal, validate, and store the configuration
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "tiktok"})
			return err
		}

		// 3. Initialize the logger
		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting tiktok automation",
			zap.String("version", Version))

		return nil
	},
}

// Execute adds all child commands to the root command and runs it with
// the context passed from main.go for graceful shutdown.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			if ctx.Err() == nil {
				logger.Error("Command execution failed", zap.Error(err))
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newWarmupCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newAnalyticsCmd())
}

// initializeConfig reads in the config file and ENV variables if set.
func initializeConfig() error {
	// Set default values so the app can run with a minimal config.
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TIKTOK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind the secrets so the short env names work.
	_ = viper.BindEnv("postgres.url", "TIKTOK_POSTGRES_URL")
	_ = viper.BindEnv("services.transcription.api_key", "TIKTOK_GROQ_API_KEY", "TIKTOK_SERVICES_TRANSCRIPTION_API_KEY")
	_ = viper.BindEnv("services.vision.api_key", "TIKTOK_OPENROUTER_API_KEY", "TIKTOK_SERVICES_VISION_API_KEY")
	_ = viper.BindEnv("services.humanizer.api_key", "TIKTOK_OPENROUTER_API_KEY", "TIKTOK_SERVICES_HUMANIZER_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
