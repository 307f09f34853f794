package tracker

import (
	"context"
	"fmt"

	"exptrack/internal/config"
)

// Backend is the tracking sink. Runs created through it receive the scalar,
// series, table and artifact writes produced by output parsing.
type Backend interface {
	CreateRun(ctx context.Context, project, group string, runConfig map[string]any) (Run, error)
	CreateSweep(ctx context.Context, project string, search map[string]any) (string, error)
	// RunSweepAgent pulls run configurations for the given sweep until the
	// controller reports exhaustion, invoking fn once per tracked run.
	RunSweepAgent(ctx context.Context, project, sweepID string, fn func(Run) error) error
	Close() error
}

// Run is one tracked unit of work with its own identity and log stream.
type Run interface {
	ID() string
	Group() string
	Config() map[string]any
	LogScalar(name string, value float64, commit bool) error
	LogSeries(name string, s Series) error
	UploadTable(name string, columns []string, rows [][]string) error
	UploadArtifactDir(name, path string) error
	Finish() error
}

// Series is a paired line-series chart: Xs[i] pairs with Ys[i].
type Series struct {
	Xs    []float64
	Ys    []float64
	Key   string
	Title string
	XName string
}

// New builds the backend selected by the tracking setup.
func New(ts config.TrackingSetup) (Backend, error) {
	switch ts.Mode {
	case "online":
		return NewClient(ts.ServerURL, ts.APIKey), nil
	case "offline":
		return OpenStore(ts.Dir)
	default:
		return nil, fmt.Errorf("unknown tracking mode %q", ts.Mode)
	}
}
