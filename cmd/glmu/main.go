// Package main is the entry point for the GLM usage monitor. Without a
// subcommand it runs the Bubble Tea dashboard.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-veylop/glm-usage-tui/internal/config"
	"github.com/j-veylop/glm-usage-tui/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "glmu",
		Short:         "GLM usage monitor: live token and request quota in the terminal",
		Long:          "glmu shows the remaining GLM coding plan quota, refreshes it on an interval and keeps a local usage history.",
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runDashboard(cfg)
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.AddCommand(
		newVersionCmd(),
		newTestCmd(),
		newRefreshCmd(),
		newConfigCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			return err
		},
	}
}
