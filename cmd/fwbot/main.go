package main

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"fwbot-go/internal/app"
	"fwbot-go/internal/config"
	"fwbot-go/internal/fwbot"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates an FWBotApp. The caller must defer app.Close().
// command identifies the CLI command being run and is attached to every log line.
func newApp(cmd *cobra.Command, command string) (*app.FWBotApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewFWBotApp(cmd.Context(), cfg, command, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "fwbot",
	Short:        "Firmware and kernel source release tracker",
	SilenceUsage: true,
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check for new releases until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		oneshot, _ := cmd.Flags().GetBool("oneshot")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		a, err := newApp(cmd, "run")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Run(ctx, oneshot)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", defaults["base_dir"])
		fmt.Println("Set mirror.remote_url and notify settings before running.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Work Dir:    %s\n", cfg.WorkDir)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Markers:     %s\n", orDefault(cfg.Markers.Type, "database"))
		fmt.Printf("Vault:       %s\n", orDefault(cfg.Vault.Type, "none"))
		fmt.Printf("Notify:      %s\n", orDefault(cfg.Notify.Type, "log"))
		fmt.Printf("Provider:    %s\n", cfg.Provider.BaseURL)
		fmt.Printf("Mirror:      %s\n", orDefault(cfg.Mirror.RemoteURL, "(unset)"))
		fmt.Printf("Interval:    %s\n", cfg.Poll.Interval)
		return nil
	},
}

// catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage tracked models",
}

var catalogAddCmd = &cobra.Command{
	Use:   "add MODEL[:KERNEL_MODEL]",
	Short: "Track a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regions, _ := cmd.Flags().GetStringSlice("region")

		a, err := newApp(cmd, "catalog add")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.AddModel(cmd.Context(), args[0], regions)
		if err != nil {
			return fmt.Errorf("adding model: %w", err)
		}
		fmt.Printf("Tracking %s in %s\n", m, strings.Join(regions, ", "))
		return nil
	},
}

var catalogRemoveCmd = &cobra.Command{
	Use:   "remove MODEL",
	Short: "Stop tracking a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "catalog remove")
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.RemoveModel(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("removing model: %w", err)
		}
		if !removed {
			return fmt.Errorf("model %s is not tracked", args[0])
		}
		fmt.Printf("Stopped tracking %s\n", args[0])
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked models",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "catalog list")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Catalog(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No models tracked.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-24s  %s\n", e.Model, strings.Join(e.Regions, ","))
		}
		return nil
	},
}

// markers command
var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Inspect or override the last seen versions",
}

var markersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "markers list")
		if err != nil {
			return err
		}
		defer a.Close()

		for _, kind := range []string{fwbot.MarkerFirmware, fwbot.MarkerKernel} {
			values, err := a.Markers(cmd.Context(), kind)
			if err != nil {
				return err
			}
			color.New(color.Bold).Printf("%s (%d)\n", kind, len(values))

			models := make([]string, 0, len(values))
			for m := range values {
				models = append(models, m)
			}
			slices.Sort(models)
			for _, m := range models {
				v := values[m]
				if v == "" {
					v = color.YellowString("(unset)")
				}
				fmt.Printf("  %-24s  %s\n", m, v)
			}
		}
		return nil
	},
}

var markersSetCmd = &cobra.Command{
	Use:   "set KIND MODEL [VERSION]",
	Short: "Override a stored version; omit VERSION to reset it",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "markers set")
		if err != nil {
			return err
		}
		defer a.Close()

		version := ""
		if len(args) == 3 {
			version = args[2]
		}
		if err := a.SetMarker(cmd.Context(), args[0], args[1], version); err != nil {
			return fmt.Errorf("setting marker: %w", err)
		}
		fmt.Printf("%s marker for %s set to %q\n", args[0], args[1], version)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View check cycle history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history")
		if err != nil {
			return err
		}
		defer a.Close()

		cycles, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(cycles) == 0 {
			fmt.Println("No cycles recorded.")
			return nil
		}

		for _, c := range cycles {
			duration := ""
			if c.FinishedAt != nil {
				duration = c.FinishedAt.Sub(c.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("%s  %s  %-10s  %3d models  %s\n",
				c.ID[:min(8, len(c.ID))],
				c.StartedAt.Local().Format("2006-01-02 15:04:05"),
				cycleStatus(c.Status),
				c.Models,
				duration,
			)
		}
		return nil
	},
}

// releases command
var releasesCmd = &cobra.Command{
	Use:   "releases MODEL",
	Short: "View kernel source imports of a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "releases")
		if err != nil {
			return err
		}
		defer a.Close()

		releases, err := a.Releases(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		if len(releases) == 0 {
			fmt.Printf("No kernel imports recorded for %s.\n", args[0])
			return nil
		}

		for _, r := range releases {
			patch := ""
			if r.PatchBase != "" {
				patch = "  patch over " + r.PatchBase
			}
			fmt.Printf("%s  %-16s  %-10s  %s%s\n",
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				r.Version,
				outcomeStatus(r.Outcome),
				r.Tag,
				patch,
			)
		}
		return nil
	},
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func cycleStatus(status string) string {
	switch status {
	case fwbot.CycleCompleted:
		return color.GreenString("%-10s", status)
	case fwbot.CycleRunning, fwbot.CycleCanceled:
		return color.YellowString("%-10s", status)
	default:
		return color.RedString("%-10s", status)
	}
}

func outcomeStatus(o fwbot.Outcome) string {
	switch o {
	case fwbot.OutcomePublished:
		return color.GreenString("%-10s", o)
	case fwbot.OutcomeDuplicateSkipped:
		return color.YellowString("%-10s", o)
	default:
		return color.RedString("%-10s", o)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug logs on stderr")

	// run
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("oneshot", false, "Run a single cycle, deliver pending notifications and exit")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	// catalog subcommands
	catalogCmd.AddCommand(catalogAddCmd)
	catalogAddCmd.Flags().StringSliceP("region", "r", nil, "Region code to query, in priority order (repeatable)")
	catalogCmd.AddCommand(catalogRemoveCmd)
	catalogCmd.AddCommand(catalogListCmd)
	rootCmd.AddCommand(catalogCmd)

	// markers subcommands
	markersCmd.AddCommand(markersListCmd)
	markersCmd.AddCommand(markersSetCmd)
	rootCmd.AddCommand(markersCmd)

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of cycles to show")
	rootCmd.AddCommand(releasesCmd)
	releasesCmd.Flags().IntP("limit", "n", 20, "Maximum number of imports to show")

	rootCmd.AddCommand(secretsCmd)
}
