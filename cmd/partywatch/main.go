package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"partywatch/internal/config"
	appLog "partywatch/internal/log"
	"partywatch/internal/scheduler"
	"partywatch/internal/web"
)

const version = "0.1.0"

var (
	configPath string
	listen     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "partywatch",
	Short:         "partywatch scans a party listing and notifies interest groups about matching parties.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/partywatch/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config if set)")
	runCmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")

	rootCmd.AddCommand(runCmd, onceCmd, clearCmd, groupsCmd)
}

func main() {
	defer appLog.Sync()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("partywatch failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if listen != "" {
		cfg.Listen = listen
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

var runCmd = &cobra.Command{
	Use:   "run [--listen <addr>]",
	Short: "Scan on a schedule and serve the admin API.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appLog.Info("partywatch starting", "version", version)

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.settings.Load(ctx)
		if err != nil {
			appLog.Error("settings unreadable; using defaults", err)
		}
		spec := scheduler.SpecFor(cfg.RefreshCron, st.RefreshInterval())

		appLog.Info("effective config",
			"listen", cfg.Listen,
			"site", cfg.Site.URL,
			"source", cfg.Site.Source,
			"store", cfg.Store.Driver,
			"groups", len(cfg.Groups),
			"schedule", spec,
		)

		sched := scheduler.New(func(ctx context.Context) {
			// Errors are already logged and recorded in the report.
			_, _ = a.orch.RunPass(ctx)
		})
		if err := sched.Start(ctx, spec); err != nil {
			return err
		}

		if cfg.Listen != "" {
			srv := web.NewServer(cfg, a.orch, a.settings, sched)
			go func() {
				if err := srv.ListenAndServe(ctx); err != nil {
					appLog.Error("HTTP server stopped", err)
				}
			}()
		}

		<-ctx.Done()
		if err := sched.Stop(30 * time.Second); err != nil {
			appLog.Error("scheduler stop", err)
		}
		appLog.Info("partywatch exiting")
		return nil
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single scan pass and print its report.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.orch.RunPass(ctx)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(rep); encErr != nil {
			return encErr
		}
		return err
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear-notified",
	Short: "Forget every delivered (party, group) pair.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		n := a.orch.NotifiedCount()
		if err := a.orch.ClearNotified(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %d notified ids\n", n)
		return nil
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the effective interest groups.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tENABLED\tWEBHOOK\tKEYWORDS")
		for _, g := range a.orch.ConfiguredGroups(ctx) {
			hook := "-"
			if g.Webhook != "" {
				hook = "yes"
			}
			fmt.Fprintf(tw, "%s\t%t\t%s\t%v\n", g.Name, g.Enabled, hook, g.Keywords)
		}
		return tw.Flush()
	},
}
