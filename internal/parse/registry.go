package parse

import (
	"fmt"
	"sort"

	"exptrack/internal/config"
	"exptrack/internal/metrics"
	"exptrack/internal/tracker"
)

// MetricsFunc parses one metrics directory. last reports whether this is the
// final metrics directory of the current batch, the terminal signal for the
// aggregation scope behind agg.
type MetricsFunc func(run tracker.Run, agg *metrics.Aggregator, dir string, args map[string]any, last bool) error

// LogfileFunc handles one run log file.
type LogfileFunc func(run tracker.Run, path string, args map[string]any) error

// ArtifactsFunc handles one run artifact directory.
type ArtifactsFunc func(run tracker.Run, dir string, args map[string]any) error

var (
	metricsFuncs   = map[string]MetricsFunc{}
	logfileFuncs   = map[string]LogfileFunc{}
	artifactsFuncs = map[string]ArtifactsFunc{}
)

func RegisterMetrics(name string, fn MetricsFunc)     { metricsFuncs[name] = fn }
func RegisterLogfile(name string, fn LogfileFunc)     { logfileFuncs[name] = fn }
func RegisterArtifacts(name string, fn ArtifactsFunc) { artifactsFuncs[name] = fn }

// MethodNames lists the registered method names per category.
func MethodNames() (metricsNames, logfileNames, artifactsNames []string) {
	for name := range metricsFuncs {
		metricsNames = append(metricsNames, name)
	}
	for name := range logfileFuncs {
		logfileNames = append(logfileNames, name)
	}
	for name := range artifactsFuncs {
		artifactsNames = append(artifactsNames, name)
	}
	sort.Strings(metricsNames)
	sort.Strings(logfileNames)
	sort.Strings(artifactsNames)
	return
}

// Set holds the parsing routines resolved once at startup, before any run.
type Set struct {
	Metrics       MetricsFunc
	MetricsArgs   map[string]any
	Logfile       LogfileFunc
	LogfileArgs   map[string]any
	Artifacts     ArtifactsFunc
	ArtifactsArgs map[string]any
}

// Resolve looks up the configured method names. Any unresolved name is a
// fatal configuration error; nothing may run before this succeeds.
func Resolve(setup config.ParsingSetup) (*Set, error) {
	metricsFn, ok := metricsFuncs[setup.Metrics.Method]
	if !ok {
		return nil, fmt.Errorf("metrics parsing method %q not found", setup.Metrics.Method)
	}
	logfileFn, ok := logfileFuncs[setup.Logfile.Method]
	if !ok {
		return nil, fmt.Errorf("logfile parsing method %q not found", setup.Logfile.Method)
	}
	artifactsFn, ok := artifactsFuncs[setup.Artifacts.Method]
	if !ok {
		return nil, fmt.Errorf("artifacts parsing method %q not found", setup.Artifacts.Method)
	}
	return &Set{
		Metrics:       metricsFn,
		MetricsArgs:   setup.Metrics.Args,
		Logfile:       logfileFn,
		LogfileArgs:   setup.Logfile.Args,
		Artifacts:     artifactsFn,
		ArtifactsArgs: setup.Artifacts.Args,
	}, nil
}

// Run applies the resolved routines to the outputs of one logical run: every
// metrics directory in order with the terminal flag on the final one, then
// each log file and artifact directory.
func (s *Set) Run(run tracker.Run, agg *metrics.Aggregator, metricsDirs, logFiles, artifactDirs []string) error {
	for i, dir := range metricsDirs {
		last := i == len(metricsDirs)-1
		if err := s.Metrics(run, agg, dir, s.MetricsArgs, last); err != nil {
			return fmt.Errorf("parsing metrics dir %s: %w", dir, err)
		}
	}
	for _, path := range logFiles {
		if err := s.Logfile(run, path, s.LogfileArgs); err != nil {
			return fmt.Errorf("parsing log file %s: %w", path, err)
		}
	}
	for _, dir := range artifactDirs {
		if err := s.Artifacts(run, dir, s.ArtifactsArgs); err != nil {
			return fmt.Errorf("parsing artifacts dir %s: %w", dir, err)
		}
	}
	return nil
}
