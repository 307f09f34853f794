package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"exptrack/internal/invoker"
	"exptrack/internal/logutil"
	"exptrack/internal/metrics"
	"exptrack/internal/parse"
	"exptrack/internal/tracker"
)

// Strategy decides how a wrapper acquires tracked runs and how many internal
// repetitions each tracked run performs.
type Strategy interface {
	// Acquire obtains tracked run(s) and calls drive once per run. Simple
	// runs acquire exactly one; sweep runs receive them from the backend's
	// agent loop until the sweep controller is exhausted.
	Acquire(ctx context.Context, drive func(tracker.Run) error) error
	Repetitions() int
}

// Wrapper drives one logical run's lifecycle: acquire a tracked run, create
// its directories, invoke the experiment, parse outputs, record duration,
// finalize. No step is retried; a failure aborts this wrapper only.
type Wrapper struct {
	inv      invoker.Invoker
	parsers  *parse.Set
	base     BasePaths
	strategy Strategy
}

// NewSimple builds a wrapper performing one external execution per tracked
// run, created with the given project, group, and run configuration.
func NewSimple(backend tracker.Backend, inv invoker.Invoker, parsers *parse.Set, base BasePaths,
	project, group string, runConfig map[string]any) *Wrapper {
	return &Wrapper{
		inv:     inv,
		parsers: parsers,
		base:    base,
		strategy: &simpleStrategy{
			backend:   backend,
			project:   project,
			group:     group,
			runConfig: runConfig,
		},
	}
}

// NewSweep builds a wrapper bound to a sweep: tracked runs come from the
// backend's sweep controller, and each repeats the experiment runsPerSweep
// times before a single finalize.
func NewSweep(backend tracker.Backend, inv invoker.Invoker, parsers *parse.Set, base BasePaths,
	project, sweepID string, runsPerSweep int) *Wrapper {
	if runsPerSweep < 1 {
		runsPerSweep = 1
	}
	return &Wrapper{
		inv:     inv,
		parsers: parsers,
		base:    base,
		strategy: &sweepStrategy{
			backend: backend,
			project: project,
			sweepID: sweepID,
			reps:    runsPerSweep,
		},
	}
}

func (w *Wrapper) Execute(ctx context.Context) error {
	return w.strategy.Acquire(ctx, func(run tracker.Run) error {
		return w.drive(ctx, run)
	})
}

// drive is the shared lifecycle for both variants. The aggregator lives for
// the whole tracked run: sweep repetitions feed the same buffer, and the
// terminal flag is raised only while parsing the last metrics directory.
func (w *Wrapper) drive(ctx context.Context, run tracker.Run) error {
	reps := w.strategy.Repetitions()
	sweep := w.isSweep()

	agg := metrics.NewAggregator()
	var (
		total        time.Duration
		metricsDirs  []string
		logFiles     []string
		artifactDirs []string
	)

	for rep := 0; rep < reps; rep++ {
		repIdx := -1
		extra := map[string]any{}
		if sweep {
			repIdx = rep
			// Repetition index reaches the experiment but stays out of the
			// tracked configuration record.
			extra["run"] = rep
		}

		dirs, err := makeDirSet(w.base, run.Group(), run.ID(), repIdx)
		if err != nil {
			return err
		}

		res, err := w.inv.Run(ctx, dirs.Paths(), run.Config(), extra)
		if err != nil {
			return fmt.Errorf("invoking experiment: %w", err)
		}
		if res.ExitCode != 0 {
			logutil.L().Warn("experiment exited non-zero",
				zap.String("run", run.ID()), zap.Int("repetition", rep),
				zap.Int("exit_status", res.ExitCode))
		}
		if err := run.LogScalar("exit_status", float64(res.ExitCode), false); err != nil {
			return fmt.Errorf("recording exit status: %w", err)
		}

		total += res.Duration
		metricsDirs = append(metricsDirs, dirs.MetricsDir)
		if dirs.LogFile != "" {
			logFiles = append(logFiles, dirs.LogFile)
		}
		if dirs.ArtifactsDir != "" {
			artifactDirs = append(artifactDirs, dirs.ArtifactsDir)
		}
	}

	if err := w.parsers.Run(run, agg, metricsDirs, logFiles, artifactDirs); err != nil {
		return err
	}

	mean := total / time.Duration(reps)
	if err := run.LogScalar("duration_secs", mean.Seconds(), true); err != nil {
		return fmt.Errorf("recording duration: %w", err)
	}
	if err := run.Finish(); err != nil {
		return fmt.Errorf("finalizing run %s: %w", run.ID(), err)
	}
	return nil
}

func (w *Wrapper) isSweep() bool {
	_, ok := w.strategy.(*sweepStrategy)
	return ok
}

type simpleStrategy struct {
	backend   tracker.Backend
	project   string
	group     string
	runConfig map[string]any
}

func (s *simpleStrategy) Acquire(ctx context.Context, drive func(tracker.Run) error) error {
	run, err := s.backend.CreateRun(ctx, s.project, s.group, s.runConfig)
	if err != nil {
		return fmt.Errorf("creating tracked run: %w", err)
	}
	return drive(run)
}

func (s *simpleStrategy) Repetitions() int { return 1 }

type sweepStrategy struct {
	backend tracker.Backend
	project string
	sweepID string
	reps    int
}

func (s *sweepStrategy) Acquire(ctx context.Context, drive func(tracker.Run) error) error {
	return s.backend.RunSweepAgent(ctx, s.project, s.sweepID, drive)
}

func (s *sweepStrategy) Repetitions() int { return s.reps }
