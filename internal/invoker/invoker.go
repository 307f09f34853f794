package invoker

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"exptrack/internal/config"
)

// Paths are the per-run output locations handed to the experiment program.
// LogFile and ArtifactsDir may be empty.
type Paths struct {
	MetricsDir   string
	LogFile      string
	ArtifactsDir string
}

type Result struct {
	Duration time.Duration
	ExitCode int
}

// Invoker executes the external experiment program once, synchronously.
// The program's exit status is reported, never turned into an error.
type Invoker interface {
	Run(ctx context.Context, paths Paths, runConfig, extra map[string]any) (Result, error)
}

// New resolves the experiment script and static arguments and returns the
// configured invoker. A missing script is a fatal misconfiguration and must
// be reported here, before any run starts.
func New(setup config.ExecutionSetup) (Invoker, error) {
	if setup.EnvFile != "" {
		if err := godotenv.Load(setup.EnvFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", setup.EnvFile, err)
		}
	}

	script := setup.Script
	if script == "" {
		script = os.Getenv("EXPERIMENT_SCRIPT")
	}
	if script == "" {
		return nil, fmt.Errorf("experiment script not set (execution-setup.script or EXPERIMENT_SCRIPT)")
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("experiment script %s: %w", script, err)
	}

	staticArgs := setup.Args
	if staticArgs == "" {
		staticArgs = os.Getenv("EXP_ARGS")
	}

	switch setup.Runner {
	case "", "exec":
		return &ExecInvoker{Script: script, StaticArgs: strings.Fields(staticArgs)}, nil
	case "docker":
		timeout := time.Duration(setup.TimeoutMinutes) * time.Minute
		return &DockerInvoker{
			Image:      setup.Image,
			Script:     script,
			StaticArgs: strings.Fields(staticArgs),
			Timeout:    timeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown runner %q", setup.Runner)
	}
}

// BuildArgs assembles the experiment argument list in its fixed order:
// metrics dir, log path (if any), artifacts dir (if any), static args, then
// one --key=value per config entry and per run-scoped extra entry.
func BuildArgs(paths Paths, staticArgs []string, runConfig, extra map[string]any) []string {
	args := []string{paths.MetricsDir}
	if paths.LogFile != "" {
		args = append(args, paths.LogFile)
	}
	if paths.ArtifactsDir != "" {
		args = append(args, paths.ArtifactsDir)
	}
	args = append(args, staticArgs...)
	args = append(args, keyValueArgs(runConfig)...)
	args = append(args, keyValueArgs(extra)...)
	return args
}

func keyValueArgs(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("--%s=%v", k, m[k]))
	}
	return args
}
