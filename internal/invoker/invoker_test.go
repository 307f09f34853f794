package invoker_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"exptrack/internal/config"
	"exptrack/internal/invoker"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.sh")
	if err := os.WriteFile(path, []byte("#!/bin/bash\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func clearScriptEnv(t *testing.T) {
	t.Helper()
	t.Setenv("EXPERIMENT_SCRIPT", "")
	t.Setenv("EXP_ARGS", "")
	os.Unsetenv("EXPERIMENT_SCRIPT")
	os.Unsetenv("EXP_ARGS")
}

func TestBuildArgsFixedOrder(t *testing.T) {
	paths := invoker.Paths{MetricsDir: "m", LogFile: "l", ArtifactsDir: "a"}
	got := invoker.BuildArgs(paths, []string{"-v", "--seed=7"},
		map[string]any{"nodes": 100, "alpha": 0.5},
		map[string]any{"run": 2})
	want := []string{"m", "l", "a", "-v", "--seed=7", "--alpha=0.5", "--nodes=100", "--run=2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildArgs: got %v, want %v", got, want)
	}
}

func TestBuildArgsOmitsOptionalPaths(t *testing.T) {
	got := invoker.BuildArgs(invoker.Paths{MetricsDir: "m"}, nil, map[string]any{"x": 1}, nil)
	want := []string{"m", "--x=1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildArgs: got %v, want %v", got, want)
	}
}

func TestNewMissingScriptIsFatal(t *testing.T) {
	clearScriptEnv(t)
	if _, err := invoker.New(config.ExecutionSetup{Runner: "exec"}); err == nil {
		t.Error("expected error when no experiment script is configured")
	}
}

func TestNewNonexistentScriptIsFatal(t *testing.T) {
	clearScriptEnv(t)
	setup := config.ExecutionSetup{Runner: "exec", Script: "/nonexistent/experiment.sh"}
	if _, err := invoker.New(setup); err == nil {
		t.Error("expected error for nonexistent script path")
	}
}

func TestNewLoadsEnvFile(t *testing.T) {
	clearScriptEnv(t)
	script := writeScript(t, "exit 0")
	envFile := filepath.Join(t.TempDir(), "exp.env")
	if err := os.WriteFile(envFile, []byte("EXPERIMENT_SCRIPT="+script+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	inv, err := invoker.New(config.ExecutionSetup{Runner: "exec", EnvFile: envFile})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	exec, ok := inv.(*invoker.ExecInvoker)
	if !ok {
		t.Fatalf("expected ExecInvoker, got %T", inv)
	}
	if exec.Script != script {
		t.Errorf("script: got %q, want %q", exec.Script, script)
	}
}

func TestExecInvokerPassesArguments(t *testing.T) {
	clearScriptEnv(t)
	script := writeScript(t, `out="$1"; shift; printf '%s\n' "$@" > "$out/args.txt"`)
	inv, err := invoker.New(config.ExecutionSetup{Runner: "exec", Script: script, Args: "-v --seed=7"})
	if err != nil {
		t.Fatal(err)
	}

	metricsDir := t.TempDir()
	res, err := inv.Run(context.Background(), invoker.Paths{MetricsDir: metricsDir},
		map[string]any{"nodes": 50}, map[string]any{"run": 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", res.ExitCode)
	}
	if res.Duration <= 0 {
		t.Error("expected positive wall-clock duration")
	}

	data, err := os.ReadFile(filepath.Join(metricsDir, "args.txt"))
	if err != nil {
		t.Fatalf("reading recorded args: %v", err)
	}
	got := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{"-v", "--seed=7", "--nodes=50", "--run=1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("experiment received %v, want %v", got, want)
	}
}

func TestExecInvokerNonZeroExitIsNotAnError(t *testing.T) {
	clearScriptEnv(t)
	script := writeScript(t, "exit 3")
	inv := &invoker.ExecInvoker{Script: script}

	res, err := inv.Run(context.Background(), invoker.Paths{MetricsDir: t.TempDir()}, nil, nil)
	if err != nil {
		t.Fatalf("non-zero exit must not surface as error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code: got %d, want 3", res.ExitCode)
	}
}

func TestNewDockerRunner(t *testing.T) {
	clearScriptEnv(t)
	script := writeScript(t, "exit 0")
	setup := config.ExecutionSetup{Runner: "docker", Script: script, Image: "sim:latest", TimeoutMinutes: 5}
	inv, err := invoker.New(setup)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d, ok := inv.(*invoker.DockerInvoker)
	if !ok {
		t.Fatalf("expected DockerInvoker, got %T", inv)
	}
	if d.Image != "sim:latest" {
		t.Errorf("image: got %q", d.Image)
	}
}
