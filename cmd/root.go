package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/combat-sim/combat-sim/sim"
	"github.com/combat-sim/combat-sim/sim/catalog"
	"github.com/combat-sim/combat-sim/sim/history"
	_ "github.com/combat-sim/combat-sim/sim/loot"
	"github.com/combat-sim/combat-sim/sim/trace"
)

var (
	// CLI flags for the run command
	catalogPath  string // Catalog YAML with realms, items, monsters and containers
	settingsPath string // Settings YAML; defaults are used when empty
	selected     string // Single target, e.g. dungeon:golbin_raid
	plotName     string // Chart metric to print
	engineURL    string // Remote engine (ws:// or http://); in-process when empty
	channelCount int    // Number of compute channels
	trialCount   int    // Overrides trial_count
	tickBudget   int64  // Overrides tick_budget
	seed         int64  // Overrides seed
	traceLevel   string // Dispatch trace output: none, summary or items
	replay       bool   // Restore the recorded run into a fresh simulator and print it again

	// CLI flags shared by every command
	logLevel   string // Log verbosity level
	logFile    string // Optional rotating log file
	logMaxSize int    // Rotating log file size in MB
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "combat-sim",
	Short: "Monte-Carlo combat simulation over monsters, dungeons and slayer tasks",
}

// runOptions carries the resolved flags of one run.
type runOptions struct {
	CatalogPath  string
	SettingsPath string
	Selected     string
	Plot         string
	EngineURL    string
	Channels     int
	Trace        trace.TraceLevel
	Replay       bool
	// overrides applies flag values the user set explicitly.
	overrides func(s *sim.Settings)
}

// runCmd executes the simulation using the catalog and settings files
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the combat simulation",
	Run: func(cmd *cobra.Command, args []string) {
		closer, err := setupLogging(logLevel, LogFileConfig{Path: logFile, MaxSizeMB: logMaxSize, MaxBackups: 3, MaxAgeDays: 7})
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer closer.Close()

		if catalogPath == "" {
			logrus.Fatalf("Catalog not provided. Exiting simulation.")
		}

		flags := cmd.Flags()
		opts := runOptions{
			CatalogPath:  catalogPath,
			SettingsPath: settingsPath,
			Selected:     selected,
			Plot:         plotName,
			EngineURL:    engineURL,
			Channels:     channelCount,
			Trace:        trace.TraceLevel(traceLevel),
			Replay:       replay,
			overrides: func(s *sim.Settings) {
				// Only flags the user set replace file values.
				if flags.Changed("trials") {
					s.TrialCount = trialCount
				}
				if flags.Changed("tick-budget") {
					s.TickBudget = tickBudget
				}
				if flags.Changed("seed") {
					s.Seed = seed
				}
			},
		}

		ctx, stop := context.WithCancel(context.Background())
		defer stop()
		if err := runSimulation(ctx, opts, os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// runSimulation loads the inputs, runs once, prints the chart and, with
// Replay, restores the recorded run into a fresh simulator as a check.
func runSimulation(ctx context.Context, opts runOptions, out io.Writer) error {
	cat, err := catalog.Load(opts.CatalogPath)
	if err != nil {
		return err
	}
	settings := sim.DefaultSettings()
	if opts.SettingsPath != "" {
		if settings, err = sim.LoadSettings(opts.SettingsPath); err != nil {
			return err
		}
	}
	if opts.Selected != "" {
		settings.Selected = opts.Selected
	}
	if opts.overrides != nil {
		opts.overrides(settings)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	plot, ok := sim.PlotByName(opts.Plot)
	if !ok {
		return fmt.Errorf("unknown plot %q", opts.Plot)
	}
	if !trace.IsValidTraceLevel(string(opts.Trace)) {
		return fmt.Errorf("unknown trace level %q; valid: none, summary, items", opts.Trace)
	}

	hist, err := history.Open()
	if err != nil {
		return err
	}
	defer hist.Close()

	channels, closeChannels, err := buildChannels(ctx, cat, opts.EngineURL, opts.Channels)
	if err != nil {
		return err
	}
	defer closeChannels()

	s := sim.NewSimulator(cat, settings, hist, channels...)
	s.AddObserver(func(completed, total int) {
		logrus.Debugf("progress: %d/%d", completed, total)
	})

	done := make(chan struct{})
	defer close(done)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logrus.Warn("interrupt received, cancelling run")
			s.Cancel()
		case <-done:
		}
	}()

	mode := sim.ModeAll
	if settings.Selected != "" {
		mode = sim.ModeSelected
	}
	logrus.Infof("Starting %v run over %d monsters: trials=%d, tick budget=%d, seed=%d, channels=%d",
		mode, cat.Monsters(), settings.TrialCount, settings.TickBudget, settings.Seed, len(channels))
	startTime := time.Now()

	result, err := s.Run(ctx, mode)
	var selErr *sim.SelectionError
	switch {
	case errors.As(err, &selErr):
		fmt.Fprintf(out, "Cannot simulate %s: %s\n", selErr.Target, selErr.Reason)
	case err != nil:
		return err
	}
	logrus.Infof("run took %v", time.Since(startTime).Round(time.Millisecond))

	printReport(out, result)
	if err := printDataSet(out, s, plot); err != nil {
		return err
	}
	switch opts.Trace {
	case trace.TraceLevelSummary:
		printTraceSummary(out, result.Trace)
	case trace.TraceLevelItems:
		printTraceSummary(out, result.Trace)
		printTraceItems(out, result.Trace)
	}

	if opts.Replay && result.HistoryID != "" {
		snap, err := hist.Load(result.HistoryID)
		if err != nil {
			return err
		}
		replayed := sim.NewSimulator(cat, settings, nil, channels...)
		if err := replayed.Restore(snap); err != nil {
			return err
		}
		fmt.Fprintf(out, "=== Replay of %s ===\n", result.HistoryID)
		if err := printDataSet(out, replayed, plot); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this rotating file")
	rootCmd.PersistentFlags().IntVar(&logMaxSize, "log-max-size", 10, "Rotating log file size in MB")

	runCmd.Flags().StringVar(&catalogPath, "catalog", "", "Catalog YAML (realms, items, monsters, areas, containers, tasks)")
	runCmd.Flags().StringVar(&settingsPath, "settings", "", "Settings YAML; built-in defaults when empty")
	runCmd.Flags().StringVar(&selected, "selected", "", "Simulate only this target, e.g. monster:cow or dungeon:golbin_raid")
	runCmd.Flags().StringVar(&plotName, "plot", "xp", "Metric to print (see sim.PlotTypes; gp:<currency> for gold)")
	runCmd.Flags().StringVar(&engineURL, "engine-url", "", "Remote engine URL (ws://host:port/ws or http://host:port)")
	runCmd.Flags().IntVar(&channelCount, "channels", 1, "Number of compute channels")
	runCmd.Flags().IntVar(&trialCount, "trials", 1000, "Trials per monster (overrides settings)")
	runCmd.Flags().Int64Var(&tickBudget, "tick-budget", 1_000_000, "Tick budget per trial (overrides settings)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed (overrides settings)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Dispatch trace output (none, summary, items); --trace alone means summary")
	runCmd.Flags().Lookup("trace").NoOptDefVal = string(trace.TraceLevelSummary)
	runCmd.Flags().BoolVar(&replay, "replay", false, "Restore the recorded run into a fresh simulator and print it again")

	// Attach subcommands to `root`
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(engineCmd)
}
