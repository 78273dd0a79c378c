package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"actrack/internal/app"
	"actrack/internal/config"
	"actrack/internal/types"

	"github.com/spf13/cobra"
)

// withApp loads settings, opens the app, runs fn, and closes the app.
func withApp(ctx context.Context, settingsPath string, fn func(*app.App) error) error {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, app.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newRunCommand(settingsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sample foreground applications and resolved domains until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, *settingsPath, func(a *app.App) error {
				return a.Run(ctx)
			})
		},
	}
}

func newReportCommand(settingsPath *string) *cobra.Command {
	var (
		date     string
		from, to string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:       "report [apps|domains]",
		Short:     "Show time per application or domain, longest first",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"apps", "domains"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := types.EntityApplication
			if len(args) == 1 {
				k, err := types.ParseEntityKind(args[0])
				if err != nil {
					return err
				}
				kind = k
			}

			return withApp(cmd.Context(), *settingsPath, func(a *app.App) error {
				var (
					totals []types.ActivityTotal
					err    error
				)
				if from != "" || to != "" {
					totals, err = a.ReportRange(cmd.Context(), kind, from, to)
				} else {
					totals, err = a.Report(cmd.Context(), kind, date)
				}
				if err != nil {
					return err
				}
				if limit > 0 && len(totals) > limit {
					totals = totals[:limit]
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), totals)
				}
				return writeTotals(cmd.OutOrStdout(), kind, totals)
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to report as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&from, "from", "", "first day of a range as YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day of a range as YYYY-MM-DD")
	cmd.MarkFlagsRequiredTogether("from", "to")
	cmd.MarkFlagsMutuallyExclusive("date", "from")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most N entries (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func writeTotals(w io.Writer, kind types.EntityKind, totals []types.ActivityTotal) error {
	if len(totals) == 0 {
		_, err := fmt.Fprintln(w, "No activity recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	heading := "APPLICATION"
	if kind == types.EntityDomain {
		heading = "DOMAIN"
	}
	fmt.Fprintf(tw, "%s\tTIME\tSECONDS\n", heading)
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", t.Name, t.Duration().Round(time.Second), t.Seconds)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRecordCommand(settingsPath *string) *cobra.Command {
	var (
		appName string
		domain  string
		seconds int64
		date    string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Credit seconds to an application and/or domain directly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if appName == "" && domain == "" {
				return fmt.Errorf("one of --app or --domain is required")
			}
			return withApp(cmd.Context(), *settingsPath, func(a *app.App) error {
				return a.Record(cmd.Context(), appName, domain, seconds, date)
			})
		},
	}

	cmd.Flags().StringVar(&appName, "app", "", "application name")
	cmd.Flags().StringVar(&domain, "domain", "", "domain name")
	cmd.Flags().Int64Var(&seconds, "seconds", 0, "seconds to add")
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default: today)")
	_ = cmd.MarkFlagRequired("seconds")
	return cmd
}

func newCleanupCommand(settingsPath *string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete aggregates older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *settingsPath, func(a *app.App) error {
				deleted, err := a.Cleanup(cmd.Context(), days)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d rows.\n", deleted)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", -1, "retention window in days (default: database.retention_days)")
	return cmd
}

func newConfigCommand(settingsPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or write values stored alongside the aggregates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *settingsPath, func(a *app.App) error {
				v, err := a.GetConfig(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *settingsPath, func(a *app.App) error {
				return a.SetConfig(cmd.Context(), args[0], args[1])
			})
		},
	})

	return cmd
}

func newSettingsCommand(settingsPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the settings file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveSettingsPath(*settingsPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return err
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveSettingsPath(*settingsPath)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	})

	return cmd
}

func resolveSettingsPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return config.DefaultPath()
}
