package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/j-veylop/glm-usage-tui/internal/client"
	"github.com/j-veylop/glm-usage-tui/internal/config"
	"github.com/j-veylop/glm-usage-tui/internal/logger"
	"github.com/j-veylop/glm-usage-tui/internal/models"
	"github.com/j-veylop/glm-usage-tui/internal/services"
	"github.com/j-veylop/glm-usage-tui/internal/ui/components"
)

const barWidth = 20

// withManager loads configuration, logs to stderr and runs fn with a
// backend manager that is closed afterwards.
func withManager(fn func(*services.Manager) error) error {
	logger.Setup(os.Stderr, logger.LevelFromEnv())

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer mgr.Close()
	return fn(mgr)
}

// reportResult prints a validation result and turns failures into an error
// so the process exits non-zero.
func reportResult(w io.Writer, r client.ValidationResult) error {
	if !r.OK {
		return errors.New(r.String())
	}
	prefix := "ok"
	if r.Degraded {
		prefix = "warning"
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", prefix, r.String())
	return err
}

type credentialFlags struct {
	token    string
	org      string
	project  string
	interval int
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.token, "token", "", "API token")
	cmd.Flags().StringVar(&f.org, "org", "", "organization id")
	cmd.Flags().StringVar(&f.project, "project", "", "project id")
}

// merge overlays the flags that were set onto base.
func (f *credentialFlags) merge(cmd *cobra.Command, base models.Credentials) models.Credentials {
	if cmd.Flags().Changed("token") {
		base.Token = f.token
	}
	if cmd.Flags().Changed("org") {
		base.Organization = f.org
	}
	if cmd.Flags().Changed("project") {
		base.Project = f.project
	}
	if cmd.Flags().Changed("interval") {
		base.RefreshIntervalSeconds = f.interval
	}
	return base
}

func storedCredentials(ctx context.Context, mgr *services.Manager) (models.Credentials, error) {
	creds, err := mgr.GetConfig(ctx)
	if err != nil || creds == nil {
		return models.Credentials{}, err
	}
	return *creds, nil
}

func newTestCmd() *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test a connection with the given or stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(func(mgr *services.Manager) error {
				ctx := cmd.Context()
				base, err := storedCredentials(ctx, mgr)
				if err != nil {
					return err
				}
				candidate := flags.merge(cmd, base)
				result := client.NewValidator(mgr, nil).TestConnection(ctx, candidate)
				return reportResult(cmd.OutOrStdout(), result)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch usage once and print the limits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(func(mgr *services.Manager) error {
				raw, err := mgr.ManualRefresh(cmd.Context())
				if err != nil {
					return err
				}
				switch s := models.Normalize(raw).(type) {
				case models.ErrSnapshot:
					return s.Error()
				case models.OkSnapshot:
					return printLimits(cmd.OutOrStdout(), s)
				}
				return nil
			})
		},
	}
}

func printLimits(w io.Writer, s models.OkSnapshot) error {
	if s.Empty() {
		_, err := fmt.Fprintln(w, "No usage data yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, l := range s.Limits() {
		fmt.Fprintf(tw, "%s\t%s\t%5.1f%%\t%s / %s %s\t%s\n",
			models.Title(l.Kind),
			components.SimpleLimitBar(l.Percentage, barWidth),
			l.Percentage,
			models.DisplayValue(l.Kind, l.CurrentValue),
			models.DisplayValue(l.Kind, l.UsageTotal),
			models.UnitLabel(l.Kind),
			models.ResetDescription(l))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, models.TrayTitle(&s))
	return tw.Flush()
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the stored API credentials",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored credentials with the token masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(func(mgr *services.Manager) error {
				creds, err := storedCredentials(cmd.Context(), mgr)
				if err != nil {
					return err
				}
				return printCredentials(cmd.OutOrStdout(), mgr.ConfigPath(), creds)
			})
		},
	}
}

func printCredentials(w io.Writer, path string, c models.Credentials) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "path\t%s\n", path)
	if c == (models.Credentials{}) {
		fmt.Fprintln(tw, "status\tnot configured")
		return tw.Flush()
	}
	c = c.WithDefaults()
	fmt.Fprintf(tw, "token\t%s\n", c.MaskedToken())
	fmt.Fprintf(tw, "organization\t%s\n", c.Organization)
	fmt.Fprintf(tw, "project\t%s\n", c.Project)
	fmt.Fprintf(tw, "refresh interval\t%ds\n", c.RefreshIntervalSeconds)
	return tw.Flush()
}

func newConfigSetCmd() *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Validate and save credentials; unset flags keep their stored value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(func(mgr *services.Manager) error {
				ctx := cmd.Context()
				base, err := storedCredentials(ctx, mgr)
				if err != nil {
					return err
				}
				result := client.NewValidator(mgr, nil).Save(ctx, flags.merge(cmd, base))
				return reportResult(cmd.OutOrStdout(), result)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&flags.interval, "interval", models.DefaultRefreshInterval,
		fmt.Sprintf("refresh interval in seconds, one of %v", models.AllowedRefreshIntervals))
	return cmd
}
