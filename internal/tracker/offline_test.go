package tracker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"exptrack/internal/config"
	"exptrack/internal/tracker"
)

func openTestStore(t *testing.T) *tracker.Store {
	t.Helper()
	store, err := tracker.OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRunLifecycle(t *testing.T) {
	store := openTestStore(t)

	run, err := store.CreateRun(context.Background(), "mesh", "g1", map[string]any{"nodes": 50})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID() == "" || run.Group() != "g1" {
		t.Errorf("run identity: id=%q group=%q", run.ID(), run.Group())
	}

	if err := run.LogScalar("pdr_avg", 0.69, true); err != nil {
		t.Fatalf("LogScalar: %v", err)
	}
	if err := run.LogScalar("exit_status", 0, false); err != nil {
		t.Fatalf("LogScalar: %v", err)
	}
	if err := run.LogSeries("pdr", tracker.Series{Xs: []float64{50}, Ys: []float64{0.9}, Key: "g1"}); err != nil {
		t.Fatalf("LogSeries: %v", err)
	}
	if err := run.UploadTable("logfile", []string{"Logfile"}, [][]string{{"ok"}}); err != nil {
		t.Fatalf("UploadTable: %v", err)
	}
	if err := run.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	var project, group string
	var finished *string
	err = store.DB().QueryRow(
		`SELECT project, group_id, finished_at FROM runs WHERE id = ?`, run.ID()).
		Scan(&project, &group, &finished)
	if err != nil {
		t.Fatalf("querying run row: %v", err)
	}
	if project != "mesh" || group != "g1" {
		t.Errorf("run row: project=%q group=%q", project, group)
	}
	if finished == nil {
		t.Error("expected finished_at to be set after Finish")
	}

	var committed int
	err = store.DB().QueryRow(
		`SELECT committed FROM scalars WHERE run_id = ? AND name = 'pdr_avg'`, run.ID()).
		Scan(&committed)
	if err != nil {
		t.Fatalf("querying scalar: %v", err)
	}
	if committed != 1 {
		t.Error("pdr_avg should be recorded as committed")
	}

	var seriesCount, tableCount int
	store.DB().QueryRow(`SELECT COUNT(*) FROM series WHERE run_id = ?`, run.ID()).Scan(&seriesCount)
	store.DB().QueryRow(`SELECT COUNT(*) FROM run_tables WHERE run_id = ?`, run.ID()).Scan(&tableCount)
	if seriesCount != 1 || tableCount != 1 {
		t.Errorf("expected 1 series and 1 table row, got %d and %d", seriesCount, tableCount)
	}
}

func TestStoreArtifactDirRecordsSize(t *testing.T) {
	store := openTestStore(t)
	run, err := store.CreateRun(context.Background(), "mesh", "g1", nil)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "trace.bin"), make([]byte, 1024), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run.UploadArtifactDir("artifacts", dir); err != nil {
		t.Fatalf("UploadArtifactDir: %v", err)
	}

	var bytes int64
	err = store.DB().QueryRow(
		`SELECT bytes FROM artifacts WHERE run_id = ?`, run.ID()).Scan(&bytes)
	if err != nil {
		t.Fatalf("querying artifact row: %v", err)
	}
	if bytes != 1024 {
		t.Errorf("artifact size: got %d, want 1024", bytes)
	}
}

func TestStoreSweepsUnsupported(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.CreateSweep(context.Background(), "mesh", nil); err == nil {
		t.Error("expected CreateSweep to fail offline")
	}
	err := store.RunSweepAgent(context.Background(), "mesh", "s1", func(tracker.Run) error { return nil })
	if err == nil {
		t.Error("expected RunSweepAgent to fail offline")
	}
}

func TestStoreReopenKeepsRuns(t *testing.T) {
	dir := t.TempDir()
	store, err := tracker.OpenStore(dir)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	run, err := store.CreateRun(context.Background(), "mesh", "g1", nil)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	store.Close()

	reopened, err := tracker.OpenStore(dir)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer reopened.Close()

	var count int
	err = reopened.DB().QueryRow(`SELECT COUNT(*) FROM runs WHERE id = ?`, run.ID()).Scan(&count)
	if err != nil {
		t.Fatalf("querying reopened store: %v", err)
	}
	if count != 1 {
		t.Errorf("expected run to survive reopen, got %d rows", count)
	}
}

func TestTrackerNewDispatch(t *testing.T) {
	backend, err := tracker.New(config.TrackingSetup{Mode: "offline", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New offline: %v", err)
	}
	if _, ok := backend.(*tracker.Store); !ok {
		t.Errorf("expected offline store, got %T", backend)
	}
	backend.Close()

	backend, err = tracker.New(config.TrackingSetup{Mode: "online", ServerURL: "http://localhost:9"})
	if err != nil {
		t.Fatalf("New online: %v", err)
	}
	if _, ok := backend.(*tracker.Client); !ok {
		t.Errorf("expected http client, got %T", backend)
	}
	backend.Close()

	if _, err := tracker.New(config.TrackingSetup{Mode: "broadcast"}); err == nil {
		t.Error("expected error for unknown tracking mode")
	}
}
