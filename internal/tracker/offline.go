package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"exptrack/internal/logutil"
)

// Store is the offline backend: everything a remote tracking server would
// receive is persisted into a local SQLite database instead.
type Store struct {
	db  *sql.DB
	dir string
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	project     TEXT NOT NULL,
	group_id    TEXT NOT NULL,
	config      TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	finished_at TEXT
);
CREATE TABLE IF NOT EXISTS scalars (
	run_id    TEXT NOT NULL,
	name      TEXT NOT NULL,
	value     REAL NOT NULL,
	committed INTEGER NOT NULL,
	logged_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS series (
	run_id TEXT NOT NULL,
	name   TEXT NOT NULL,
	xs     TEXT NOT NULL,
	ys     TEXT NOT NULL,
	key    TEXT,
	title  TEXT,
	x_name TEXT
);
CREATE TABLE IF NOT EXISTS run_tables (
	run_id  TEXT NOT NULL,
	name    TEXT NOT NULL,
	columns TEXT NOT NULL,
	rows    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS artifacts (
	run_id TEXT NOT NULL,
	name   TEXT NOT NULL,
	path   TEXT NOT NULL,
	bytes  INTEGER NOT NULL
);
`

func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tracking dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "exptrack.db"))
	if err != nil {
		return nil, fmt.Errorf("opening tracking store: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring tracking store: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing tracking store: %w", err)
	}
	return &Store{db: db, dir: dir}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for read-only reporting queries.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) CreateRun(ctx context.Context, project, group string, runConfig map[string]any) (Run, error) {
	cfgJSON, err := json.Marshal(runConfig)
	if err != nil {
		return nil, fmt.Errorf("encoding run config: %w", err)
	}
	id := NewRunID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, project, group_id, config, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, project, group, string(cfgJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return &storeRun{s: s, id: id, group: group, config: runConfig}, nil
}

func (s *Store) CreateSweep(ctx context.Context, project string, search map[string]any) (string, error) {
	return "", fmt.Errorf("sweeps require online tracking")
}

func (s *Store) RunSweepAgent(ctx context.Context, project, sweepID string, fn func(Run) error) error {
	return fmt.Errorf("sweeps require online tracking")
}

// NewRunID produces a short backend-style run identity.
func NewRunID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

type storeRun struct {
	s      *Store
	id     string
	group  string
	config map[string]any
}

func (r *storeRun) ID() string             { return r.id }
func (r *storeRun) Group() string          { return r.group }
func (r *storeRun) Config() map[string]any { return r.config }

func (r *storeRun) LogScalar(name string, value float64, commit bool) error {
	committed := 0
	if commit {
		committed = 1
	}
	_, err := r.s.db.Exec(
		`INSERT INTO scalars (run_id, name, value, committed, logged_at) VALUES (?, ?, ?, ?, ?)`,
		r.id, name, value, committed, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording scalar %s: %w", name, err)
	}
	return nil
}

func (r *storeRun) LogSeries(name string, s Series) error {
	xs, err := json.Marshal(s.Xs)
	if err != nil {
		return err
	}
	ys, err := json.Marshal(s.Ys)
	if err != nil {
		return err
	}
	_, err = r.s.db.Exec(
		`INSERT INTO series (run_id, name, xs, ys, key, title, x_name) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.id, name, string(xs), string(ys), s.Key, s.Title, s.XName)
	if err != nil {
		return fmt.Errorf("recording series %s: %w", name, err)
	}
	return nil
}

func (r *storeRun) UploadTable(name string, columns []string, rows [][]string) error {
	cols, err := json.Marshal(columns)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	_, err = r.s.db.Exec(
		`INSERT INTO run_tables (run_id, name, columns, rows) VALUES (?, ?, ?, ?)`,
		r.id, name, string(cols), string(data))
	if err != nil {
		return fmt.Errorf("recording table %s: %w", name, err)
	}
	return nil
}

// UploadArtifactDir records the artifact directory by path and total size;
// files stay where the experiment wrote them.
func (r *storeRun) UploadArtifactDir(name, dir string) error {
	var total int64
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sizing artifact dir %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	if _, err := r.s.db.Exec(
		`INSERT INTO artifacts (run_id, name, path, bytes) VALUES (?, ?, ?, ?)`,
		r.id, name, abs, total); err != nil {
		return fmt.Errorf("recording artifacts: %w", err)
	}
	logutil.L().Info("recorded artifact directory",
		zap.String("run", r.id), zap.String("path", abs),
		zap.String("size", humanize.Bytes(uint64(total))))
	return nil
}

func (r *storeRun) Finish() error {
	_, err := r.s.db.Exec(
		`UPDATE runs SET finished_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), r.id)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", r.id, err)
	}
	return nil
}
