package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"exptrack/internal/config"
	"exptrack/internal/invoker"
	"exptrack/internal/logutil"
	"exptrack/internal/parse"
	"exptrack/internal/runner"
	"exptrack/internal/tracker"
)

var (
	flagMetricsDir   string
	flagLogsDir      string
	flagArtifactsDir string
	flagSweepPath    string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <project>",
		Short: "Execute a batch of tracked experiment runs or a sweep",
		Args:  cobra.ExactArgs(1),
		RunE:  runExperiments,
	}
	cmd.Flags().StringVar(&flagMetricsDir, "metrics-dir", "", "directory receiving per-run metrics directories")
	cmd.Flags().StringVar(&flagLogsDir, "logs-dir", "", "directory receiving per-run log files")
	cmd.Flags().StringVar(&flagArtifactsDir, "artifacts-dir", "", "directory receiving per-run artifact directories")
	cmd.Flags().StringVar(&flagSweepPath, "sweep", "", "sweep config file path; runs a sweep instead of a simple batch")
	cmd.MarkFlagRequired("metrics-dir")
	return cmd
}

func runExperiments(cmd *cobra.Command, args []string) error {
	project := args[0]
	defer logutil.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Everything that can be misconfigured is resolved here, before any run.
	parsers, err := parse.Resolve(cfg.Parsing)
	if err != nil {
		return fmt.Errorf("resolving parsing methods: %w", err)
	}
	inv, err := invoker.New(cfg.Execution)
	if err != nil {
		return err
	}
	backend, err := tracker.New(cfg.Tracking)
	if err != nil {
		return err
	}
	defer backend.Close()

	base := runner.BasePaths{
		MetricsDir:   flagMetricsDir,
		LogsDir:      flagLogsDir,
		ArtifactsDir: flagArtifactsDir,
	}
	sched := &runner.Scheduler{
		Backend: backend,
		Invoker: inv,
		Parsers: parsers,
		Base:    base,
		Stagger: time.Duration(cfg.Execution.StaggerMS) * time.Millisecond,
	}

	ctx := context.Background()
	start := time.Now()

	if flagSweepPath != "" {
		doc, err := config.LoadSweep(flagSweepPath)
		if err != nil {
			return err
		}
		if err := sched.RunSweep(ctx, project, doc, base, cfgFile); err != nil {
			return err
		}
		fmt.Printf("Sweep finished in %s\n", time.Since(start).Round(time.Second))
		return nil
	}

	if err := sched.RunBatch(ctx, project, cfg.RunSetup, cfg.Params); err != nil {
		return err
	}
	runs := cfg.RunSetup.NumRunsLimit - cfg.RunSetup.NumRunsStart
	fmt.Printf("Completed %d run(s) in %s\n", runs, time.Since(start).Round(time.Second))
	return nil
}
