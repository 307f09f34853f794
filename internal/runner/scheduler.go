package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"exptrack/internal/config"
	"exptrack/internal/invoker"
	"exptrack/internal/logutil"
	"exptrack/internal/parse"
	"exptrack/internal/tracker"
)

// Scheduler fans a batch of simple runs across a bounded worker pool, or a
// sweep across independent agent worker processes.
type Scheduler struct {
	Backend tracker.Backend
	Invoker invoker.Invoker
	Parsers *parse.Set
	Base    BasePaths
	Stagger time.Duration
}

// NewGroupID generates a fresh group identity for one batch.
func NewGroupID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// RunBatch executes the simple-batch mode: one wrapper per run index between
// num-runs-start and num-runs-limit, at most setup.Parallel at a time. When
// group-by is unset or "auto" a single generated GroupID is shared by every
// run in the batch.
func (s *Scheduler) RunBatch(ctx context.Context, project string, setup config.RunSetup, params map[string]any) error {
	group := setup.GroupBy
	if group == "" || group == "auto" {
		group = NewGroupID()
	}

	jobs := make([]Job, 0, setup.NumRunsLimit-setup.NumRunsStart)
	for idx := setup.NumRunsStart; idx < setup.NumRunsLimit; idx++ {
		runConfig := make(map[string]any, len(params)+1)
		for k, v := range params {
			runConfig[k] = v
		}
		runConfig["run"] = idx

		w := NewSimple(s.Backend, s.Invoker, s.Parsers, s.Base, project, group, runConfig)
		jobs = append(jobs, func() error { return w.Execute(ctx) })
	}

	errs := RunPool(setup.Parallel, s.Stagger, jobs)
	for _, err := range errs {
		logutil.L().Error("run failed", zap.Error(err))
	}
	return errors.Join(errs...)
}

// RunSweep registers the sweep with the backend, then launches the
// configured number of agent worker processes, each a re-exec of this binary
// bound to the new SweepID. Launches are staggered like pool submissions.
func (s *Scheduler) RunSweep(ctx context.Context, project string, doc *config.SweepDocument, base BasePaths, configPath string) error {
	sweepID, err := s.Backend.CreateSweep(ctx, project, doc.Search)
	if err != nil {
		return fmt.Errorf("registering sweep: %w", err)
	}
	logutil.L().Info("sweep registered",
		zap.String("sweep", sweepID), zap.Int("agents", doc.Setup.Agents))

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving agent executable: %w", err)
	}

	var agents []*exec.Cmd
	for i := 0; i < doc.Setup.Agents; i++ {
		if i > 0 && doc.Setup.Agents > 1 && s.Stagger > 0 {
			time.Sleep(s.Stagger)
		}
		args := []string{"agent", project, sweepID,
			"--metrics-dir", base.MetricsDir,
			"--runs-per-sweep", strconv.Itoa(doc.Setup.RunsPerSweep)}
		if base.LogsDir != "" {
			args = append(args, "--logs-dir", base.LogsDir)
		}
		if base.ArtifactsDir != "" {
			args = append(args, "--artifacts-dir", base.ArtifactsDir)
		}
		if configPath != "" {
			args = append(args, "--config", configPath)
		}

		agent := exec.CommandContext(ctx, self, args...)
		agent.Stdout = os.Stdout
		agent.Stderr = os.Stderr
		if err := agent.Start(); err != nil {
			// Agents already launched keep running; wait for them below.
			logutil.L().Error("starting sweep agent", zap.Int("agent", i), zap.Error(err))
			continue
		}
		agents = append(agents, agent)
	}

	var errs []error
	for i, agent := range agents {
		if err := agent.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("sweep agent %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// RunAgent is the entrypoint of one spawned agent worker process.
func (s *Scheduler) RunAgent(ctx context.Context, project, sweepID string, runsPerSweep int) error {
	w := NewSweep(s.Backend, s.Invoker, s.Parsers, s.Base, project, sweepID, runsPerSweep)
	return w.Execute(ctx)
}
