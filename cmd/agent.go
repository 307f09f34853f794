package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"exptrack/internal/invoker"
	"exptrack/internal/logutil"
	"exptrack/internal/parse"
	"exptrack/internal/runner"
	"exptrack/internal/tracker"
)

var (
	flagAgentMetricsDir   string
	flagAgentLogsDir      string
	flagAgentArtifactsDir string
	flagRunsPerSweep      int
)

// newAgentCmd is the internal entrypoint of a spawned sweep agent worker
// process; `run --sweep` launches one of these per configured agent.
func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "agent <project> <sweep-id>",
		Short:  "Run a sweep agent bound to an existing sweep",
		Hidden: true,
		Args:   cobra.ExactArgs(2),
		RunE:   runAgent,
	}
	cmd.Flags().StringVar(&flagAgentMetricsDir, "metrics-dir", "", "directory receiving per-run metrics directories")
	cmd.Flags().StringVar(&flagAgentLogsDir, "logs-dir", "", "directory receiving per-run log files")
	cmd.Flags().StringVar(&flagAgentArtifactsDir, "artifacts-dir", "", "directory receiving per-run artifact directories")
	cmd.Flags().IntVar(&flagRunsPerSweep, "runs-per-sweep", 1, "experiment repetitions per tracked sweep run")
	cmd.MarkFlagRequired("metrics-dir")
	return cmd
}

func runAgent(cmd *cobra.Command, args []string) error {
	project, sweepID := args[0], args[1]
	defer logutil.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	parsers, err := parse.Resolve(cfg.Parsing)
	if err != nil {
		return err
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

	sched := &runner.Scheduler{
		Backend: backend,
		Invoker: inv,
		Parsers: parsers,
		Base: runner.BasePaths{
			MetricsDir:   flagAgentMetricsDir,
			LogsDir:      flagAgentLogsDir,
			ArtifactsDir: flagAgentArtifactsDir,
		},
		Stagger: time.Duration(cfg.Execution.StaggerMS) * time.Millisecond,
	}
	return sched.RunAgent(context.Background(), project, sweepID, flagRunsPerSweep)
}
