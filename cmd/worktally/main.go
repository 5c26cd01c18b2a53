package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"worktally/internal/bootstrap"
	activitydto "worktally/internal/modules/activity/dto"
	importerdto "worktally/internal/modules/importer/dto"
	"worktally/internal/platform/config"
	"worktally/internal/platform/datekey"
	"worktally/internal/platform/logging"
	"worktally/internal/ui/dashboard"
	"worktally/internal/ui/theme"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	dataDir    string
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "worktally",
		Short:         "Local coding and planning time tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", defaultDataDir(), "directory holding the database and plugins")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default <data-dir>/config.yaml)")

	root.AddCommand(newTrackCmd(flags))
	root.AddCommand(newHeartbeatCmd(flags))
	root.AddCommand(newDayCmd(flags))
	root.AddCommand(newStatsCmd(flags))
	root.AddCommand(newImportCmd(flags))
	root.AddCommand(newPluginCmd(flags))
	root.AddCommand(newMaintenanceCmd(flags))
	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newDashCmd(flags))
	return root
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + string(os.PathSeparator) + "worktally"
	}
	return ".worktally"
}

func loadApp(flags *rootFlags) (*bootstrap.App, error) {
	cfg, err := config.Load(flags.dataDir, flags.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg, logger)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newTrackCmd(flags *rootFlags) *cobra.Command {
	var noSchedule bool
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Read heartbeats as JSON lines from stdin and keep the caches current",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx, stop := signalContext()
			defer stop()

			if err := app.StartTracking(ctx); err != nil {
				return err
			}
			if !noSchedule {
				scheduler, err := app.Scheduler()
				if err != nil {
					return err
				}
				scheduler.Start(ctx)
			}
			stats, err := app.FeedReader().Run(ctx, cmd.InOrStdin())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "feed closed: %d pushed, %d rejected\n", stats.Pushed, stats.Rejected)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "skip the background finalize and maintenance jobs")
	return cmd
}

func newHeartbeatCmd(flags *rootFlags) *cobra.Command {
	heartbeat := &cobra.Command{Use: "heartbeat", Short: "Heartbeat commands"}

	var activityType, project, atRaw string
	push := &cobra.Command{
		Use:   "push",
		Short: "Record a single heartbeat",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			var at time.Time
			if atRaw != "" {
				at, err = time.Parse(time.RFC3339, atRaw)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}
			ctx := context.Background()
			if err := app.StartTracking(ctx); err != nil {
				return err
			}
			out, err := app.ActivityCLI.Push(ctx, activityType, project, at)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "recorded %s on %s\n", out.ID, out.DateKey)
			return nil
		},
	}
	push.Flags().StringVar(&activityType, "type", "Coding", "activity type: Coding|Planning")
	push.Flags().StringVar(&project, "project", "", "project name")
	push.Flags().StringVar(&atRaw, "at", "", "RFC3339 timestamp (default now)")

	heartbeat.AddCommand(push)
	return heartbeat
}

func newDayCmd(flags *rootFlags) *cobra.Command {
	var dateKey string
	var minDuration time.Duration
	cmd := &cobra.Command{
		Use:   "day",
		Short: "Show the sessions of one day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx := context.Background()
			if dateKey == "" || dateKey == app.Dates.Today() {
				if err := app.StartTracking(ctx); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("min-duration") {
				minDuration = app.Config.MinSessionDisplay
			}
			summary, err := app.ActivityCLI.Day(ctx, dateKey, minDuration)
			if err != nil {
				return err
			}
			printDay(cmd.OutOrStdout(), summary, app)
			return nil
		},
	}
	cmd.Flags().StringVar(&dateKey, "date", "", "day as YYYY-MM-DD (default today)")
	cmd.Flags().DurationVar(&minDuration, "min-duration", 0, "hide sessions shorter than this")
	return cmd
}

func printDay(w io.Writer, summary activitydto.DaySummaryOutput, app *bootstrap.App) {
	header := theme.Title.Render(summary.DateKey)
	if summary.Live {
		header += " " + theme.Live.Render("live")
	}
	_, _ = fmt.Fprintln(w, header)
	if len(summary.Sessions) == 0 {
		_, _ = fmt.Fprintln(w, theme.Muted.Render("no sessions"))
		return
	}
	loc := app.Dates.Location()
	for _, s := range summary.Sessions {
		_, _ = fmt.Fprintf(w, "%s-%s\t%s\t%s\t%s\t%s\n",
			dashboard.FormatClock(s.Start, loc),
			dashboard.FormatClock(s.End, loc),
			dashboard.FormatDuration(s.DurationMs),
			theme.Coding.Render("coding "+dashboard.FormatDuration(s.CodingMs)),
			theme.Planning.Render("planning "+dashboard.FormatDuration(s.PlanningMs)),
			strings.Join(s.Projects, ","),
		)
	}
	_, _ = fmt.Fprintf(w, "total %s (coding %s, planning %s)\n",
		theme.Hot.Render(dashboard.FormatDuration(summary.TotalTimeMs)),
		dashboard.FormatDuration(summary.TotalCodingMs),
		dashboard.FormatDuration(summary.TotalPlanningMs),
	)
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today, week and yearly totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx := context.Background()
			if err := app.StartTracking(ctx); err != nil {
				return err
			}
			stats, err := app.ActivityCLI.Stats(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "today\t\t%s\n", theme.Hot.Render(dashboard.FormatDuration(stats.TodayMs)))
			_, _ = fmt.Fprintf(w, "this week\t%s\n", dashboard.FormatDuration(stats.ThisWeekMs))
			_, _ = fmt.Fprintf(w, "last week\t%s\n", dashboard.FormatDuration(stats.LastWeekMs))
			_, _ = fmt.Fprintf(w, "daily avg\t%s\n", dashboard.FormatDuration(stats.ThisYearDailyAvgMs))
			if stats.HasLastYearData {
				_, _ = fmt.Fprintf(w, "last year avg\t%s\n", dashboard.FormatDuration(stats.LastYearDailyAvgMs))
			}
			return nil
		},
	}
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	importCmd := &cobra.Command{Use: "import", Short: "Merge external activity history"}

	var source string
	fileCmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Import records from a JSON array or JSON lines file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readImportFile(args[0])
			if err != nil {
				return err
			}
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if source == "" {
				source = "file:" + args[0]
			}
			out, err := app.ActivityCLI.Import(context.Background(), source, records)
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), out)
			return nil
		},
	}
	fileCmd.Flags().StringVar(&source, "source", "", "source label recorded with the run")

	var pluginName, from, to string
	pluginCmd := &cobra.Command{
		Use:   "plugin",
		Short: "Import records fetched by an importer plugin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			input, err := pluginRunInput(pluginName, from, to, app)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			out, err := app.ImporterCLI.Run(ctx, input)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s fetched %d records from %s\n", out.PluginName, out.Records, out.Source)
			printImport(cmd.OutOrStdout(), out.Import)
			return nil
		},
	}
	pluginCmd.Flags().StringVar(&pluginName, "plugin", "", "plugin name from plugins.json")
	pluginCmd.Flags().StringVar(&from, "from", "", "first day to fetch as YYYY-MM-DD")
	pluginCmd.Flags().StringVar(&to, "to", "", "last day to fetch as YYYY-MM-DD (default yesterday)")
	_ = pluginCmd.MarkFlagRequired("plugin")
	_ = pluginCmd.MarkFlagRequired("from")

	importCmd.AddCommand(fileCmd, pluginCmd)
	return importCmd
}

func pluginRunInput(name, from, to string, app *bootstrap.App) (importerdto.RunInput, error) {
	loc := app.Dates.Location()
	fromMs, _, err := datekey.DayBounds(from, loc)
	if err != nil {
		return importerdto.RunInput{}, fmt.Errorf("parse --from: %w", err)
	}
	if to == "" {
		to, err = datekey.AddDays(app.Dates.Today(), -1)
		if err != nil {
			return importerdto.RunInput{}, err
		}
	}
	_, toMs, err := datekey.DayBounds(to, loc)
	if err != nil {
		return importerdto.RunInput{}, fmt.Errorf("parse --to: %w", err)
	}
	return importerdto.RunInput{PluginName: name, FromMs: fromMs, ToMs: toMs}, nil
}

func printImport(w io.Writer, out activitydto.ImportOutput) {
	for _, d := range out.Days {
		if d.Replaced {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s -> %s\n", d.DateKey, theme.Coding.Render("replaced"),
				dashboard.FormatDuration(d.ExistingCodingMs), dashboard.FormatDuration(d.ImportedCodingMs))
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", d.DateKey, theme.Muted.Render("skipped: "+d.Reason))
	}
	_, _ = fmt.Fprintf(w, "run %s: %d days replaced, %d skipped, %d heartbeats written\n",
		out.RunID, out.DaysReplaced, out.DaysSkipped, out.HeartbeatsReplaced)
}

func newPluginCmd(flags *rootFlags) *cobra.Command {
	plugin := &cobra.Command{Use: "plugin", Short: "Importer plugin commands"}

	plugin.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured importer plugins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			plugins, err := app.ImporterCLI.List(context.Background())
			if err != nil {
				return err
			}
			if len(plugins) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no plugins")
				return nil
			}
			for _, p := range plugins {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tenabled=%t\t%s\n", p.Name, p.Version, p.Enabled, p.Binary)
			}
			return nil
		},
	})

	plugin.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Check plugin binaries, checksums and handshake",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			results, err := app.ImporterCLI.Doctor(context.Background())
			if err != nil {
				return err
			}
			for _, r := range results {
				status := theme.Coding.Render("ok")
				if !r.ChecksumValid || !r.BinaryReachable || !r.LifecycleOK {
					status = theme.Hot.Render("fail")
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tchecksum=%t reachable=%t lifecycle=%t %s\n",
					r.Name, status, r.ChecksumValid, r.BinaryReachable, r.LifecycleOK, r.Error)
			}
			return nil
		},
	})
	return plugin
}

func newMaintenanceCmd(flags *rootFlags) *cobra.Command {
	maintenance := &cobra.Command{Use: "maintenance", Short: "Cache maintenance commands"}

	var force bool
	recalculate := &cobra.Command{
		Use:   "recalculate",
		Short: "Recompute daily entries whose heartbeats changed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			out, err := app.ActivityCLI.Recalculate(context.Background(), force)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d days, %d unchanged\n", out.DaysRecomputed, out.DaysSkipped)
			return nil
		},
	}
	recalculate.Flags().BoolVar(&force, "force", false, "recompute every closed day")

	rebuild := &cobra.Command{
		Use:   "rebuild-aggregates",
		Short: "Drop week and year totals so they are recomputed on next read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			n, err := app.ActivityCLI.RebuildAggregates(context.Background())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared %d aggregate entries\n", n)
			return nil
		},
	}

	finalize := &cobra.Command{
		Use:   "finalize",
		Short: "Write daily entries for closed days that have none",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			out, err := app.ActivityCLI.Finalize(context.Background())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "finalized %d days\n", out.DaysFinalized)
			return nil
		},
	}

	maintenance.AddCommand(recalculate, rebuild, finalize)
	return maintenance
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	var accessLog bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only query API",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx, stop := signalContext()
			defer stop()
			if err := app.StartTracking(ctx); err != nil {
				return err
			}
			var logOut io.Writer
			if accessLog {
				logOut = os.Stderr
			}
			return app.Server(addr, logOut).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&accessLog, "access-log", false, "write an access log to stderr")
	return cmd
}

func newDashCmd(flags *rootFlags) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Run the terminal dashboard",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if err := app.StartTracking(context.Background()); err != nil {
				return err
			}
			return bootstrap.RunDashboard(app, refresh)
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 30*time.Second, "refresh interval")
	return cmd
}
