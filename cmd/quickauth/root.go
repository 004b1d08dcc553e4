package main

import (
	"github.com/spf13/cobra"

	"github.com/panyam/quickauth/internal/config"
)

// NewRootCmd creates the root command for the quickauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quickauth",
		Short: "quickauth - account registration and login API",
		Long: `quickauth serves username/password registration and login,
Facebook and Google token exchange, and password reset emails.

Settings come from flags, a YAML file (--config) and QUICKAUTH_*
environment variables.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("quickauth %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// loadConfig reads settings for cmd, which must inherit the root's
// persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
