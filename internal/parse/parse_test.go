package parse_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"exptrack/internal/config"
	"exptrack/internal/metrics"
	"exptrack/internal/parse"
	"exptrack/internal/tracker"
)

type fakeRun struct {
	scalars   map[string][]float64
	tables    map[string][][]string
	artifacts []string
}

func newFakeRun() *fakeRun {
	return &fakeRun{scalars: map[string][]float64{}, tables: map[string][][]string{}}
}

func (r *fakeRun) ID() string             { return "run1" }
func (r *fakeRun) Group() string          { return "g1" }
func (r *fakeRun) Config() map[string]any { return nil }
func (r *fakeRun) LogScalar(name string, value float64, commit bool) error {
	r.scalars[name] = append(r.scalars[name], value)
	return nil
}
func (r *fakeRun) LogSeries(string, tracker.Series) error { return nil }
func (r *fakeRun) UploadTable(name string, columns []string, rows [][]string) error {
	r.tables[name] = rows
	return nil
}
func (r *fakeRun) UploadArtifactDir(name, dir string) error {
	r.artifacts = append(r.artifacts, dir)
	return nil
}
func (r *fakeRun) Finish() error { return nil }

func defaultSetup() config.ParsingSetup {
	return config.ParsingSetup{
		Metrics:   config.ParseMethod{Method: "default"},
		Logfile:   config.ParseMethod{Method: "default"},
		Artifacts: config.ParseMethod{Method: "default"},
	}
}

func writeMetricFile(t *testing.T, dir, name, metricName string, xs, ys string) {
	t.Helper()
	content := fmt.Sprintf(
		"type: network-size\nmetric-name: %s\nx-values: %s\ny-values: %s\nx-axis: Network size\ny-axis: PDR\n",
		metricName, xs, ys)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing metric file: %v", err)
	}
}

func TestResolveDefaults(t *testing.T) {
	set, err := parse.Resolve(defaultSetup())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Metrics == nil || set.Logfile == nil || set.Artifacts == nil {
		t.Error("expected all three routines resolved")
	}
}

func TestResolveUnknownMethodFailsFast(t *testing.T) {
	for _, category := range []string{"metrics", "logfile", "artifacts"} {
		setup := defaultSetup()
		switch category {
		case "metrics":
			setup.Metrics.Method = "nope"
		case "logfile":
			setup.Logfile.Method = "nope"
		case "artifacts":
			setup.Artifacts.Method = "nope"
		}
		if _, err := parse.Resolve(setup); err == nil {
			t.Errorf("%s: expected error for unresolved method name", category)
		}
	}
}

func TestDefaultMetricsSkipsUnsupportedType(t *testing.T) {
	dir := t.TempDir()
	writeMetricFile(t, dir, "a_pdr.yaml", "pdr", "[50]", "[0.9]")
	if err := os.WriteFile(filepath.Join(dir, "b_custom.yaml"),
		[]byte("type: bogus\nmetric-name: custom\nx-values: [1]\ny-values: [2]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeMetricFile(t, dir, "c_delay.yaml", "delay", "[50]", "[10.0]")
	// Non-yaml files are ignored entirely.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := parse.Resolve(defaultSetup())
	if err != nil {
		t.Fatal(err)
	}
	run := newFakeRun()
	if err := set.Run(run, metrics.NewAggregator(), []string{dir}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := run.scalars["pdr_avg"]; !ok {
		t.Error("sibling pdr file must still be processed")
	}
	if _, ok := run.scalars["delay_avg"]; !ok {
		t.Error("sibling delay file must still be processed")
	}
	if _, ok := run.scalars["custom_avg"]; ok {
		t.Error("unsupported metric type must be skipped")
	}
}

func TestDefaultMetricsMalformedFileAborts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"),
		[]byte("type: network-size\nx-values: [1]\ny-values: [2]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := parse.Resolve(defaultSetup())
	if err != nil {
		t.Fatal(err)
	}
	err = set.Run(newFakeRun(), metrics.NewAggregator(), []string{dir}, nil, nil)
	if err == nil {
		t.Error("missing metric-name must abort parsing")
	}
}

func TestDefaultMetricsFlushesOncePerName(t *testing.T) {
	// Two files share a metric name in the batch's last directory; the
	// terminal flag must only be raised on the final record for that name.
	dir := t.TempDir()
	writeMetricFile(t, dir, "pdr_1.yaml", "pdr", "[50]", "[0.9]")
	writeMetricFile(t, dir, "pdr_2.yaml", "pdr", "[50]", "[0.7]")

	set, err := parse.Resolve(defaultSetup())
	if err != nil {
		t.Fatal(err)
	}
	run := newFakeRun()
	if err := set.Run(run, metrics.NewAggregator(), []string{dir}, nil, nil); err != nil {
		t.Fatal(err)
	}

	avgs := run.scalars["pdr_avg"]
	if len(avgs) != 1 {
		t.Fatalf("expected exactly one flush, got %d: %v", len(avgs), avgs)
	}
	if avgs[0] != 0.8 {
		t.Errorf("flush must pool both files: got %v, want 0.8", avgs[0])
	}
}

func TestRunTerminalOnlyOnLastDirectory(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	writeMetricFile(t, dir1, "pdr.yaml", "pdr", "[50]", "[0.9]")
	writeMetricFile(t, dir2, "pdr.yaml", "pdr", "[50]", "[0.5]")

	set, err := parse.Resolve(defaultSetup())
	if err != nil {
		t.Fatal(err)
	}
	run := newFakeRun()
	if err := set.Run(run, metrics.NewAggregator(), []string{dir1, dir2}, nil, nil); err != nil {
		t.Fatal(err)
	}

	avgs := run.scalars["pdr_avg"]
	if len(avgs) != 1 {
		t.Fatalf("expected one aggregate across directories, got %v", avgs)
	}
	if avgs[0] != 0.7 {
		t.Errorf("aggregate must pool both directories: got %v, want 0.7", avgs[0])
	}
}

func TestDefaultLogfileUploadsTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	if err := os.WriteFile(path, []byte("line one\nline two\nline three\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := parse.Resolve(defaultSetup())
	if err != nil {
		t.Fatal(err)
	}
	run := newFakeRun()
	if err := set.Run(run, metrics.NewAggregator(), nil, []string{path}, nil); err != nil {
		t.Fatal(err)
	}

	rows := run.tables["logfile"]
	if len(rows) != 3 {
		t.Fatalf("expected 3 log rows, got %d", len(rows))
	}
	if rows[1][0] != "line two" {
		t.Errorf("row 1: got %q", rows[1][0])
	}
}

func TestDefaultLogfileMissingIsSkipped(t *testing.T) {
	set, err := parse.Resolve(defaultSetup())
	if err != nil {
		t.Fatal(err)
	}
	run := newFakeRun()
	missing := filepath.Join(t.TempDir(), "nope.log")
	if err := set.Run(run, metrics.NewAggregator(), nil, []string{missing}, nil); err != nil {
		t.Fatalf("missing log file must not be an error: %v", err)
	}
	if len(run.tables) != 0 {
		t.Error("nothing should be uploaded for a missing log file")
	}
}

func TestDefaultArtifactsUploadsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "out.bin"), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := parse.Resolve(defaultSetup())
	if err != nil {
		t.Fatal(err)
	}
	run := newFakeRun()
	if err := set.Run(run, metrics.NewAggregator(), nil, nil, []string{dir}); err != nil {
		t.Fatal(err)
	}
	if len(run.artifacts) != 1 || run.artifacts[0] != dir {
		t.Errorf("expected artifact dir upload, got %v", run.artifacts)
	}
}
