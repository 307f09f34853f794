package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"exptrack/internal/invoker"
)

// BasePaths are the top-level output locations supplied on the command line.
// LogsDir and ArtifactsDir may be empty, in which case runs produce no log
// file or artifact directory.
type BasePaths struct {
	MetricsDir   string
	LogsDir      string
	ArtifactsDir string
}

// DirSet is one run's private output namespace, deterministically named from
// the group, the backend-assigned run identity and, for sweep repetitions,
// the repetition index.
type DirSet struct {
	MetricsDir   string
	LogFile      string
	ArtifactsDir string
}

func (d DirSet) Paths() invoker.Paths {
	return invoker.Paths{MetricsDir: d.MetricsDir, LogFile: d.LogFile, ArtifactsDir: d.ArtifactsDir}
}

// makeDirSet creates the run's directories. rep < 0 means no repetition
// suffix. A name collision is an error: concurrent runs must never share a
// directory, so an existing directory aborts this wrapper.
func makeDirSet(base BasePaths, group, runID string, rep int) (DirSet, error) {
	prefix := fmt.Sprintf("%s_run_%s", group, runID)
	if rep >= 0 {
		prefix += "_" + strconv.Itoa(rep)
	}

	var set DirSet
	set.MetricsDir = filepath.Join(base.MetricsDir, prefix)
	if err := os.MkdirAll(base.MetricsDir, 0o755); err != nil {
		return DirSet{}, fmt.Errorf("creating metrics base dir: %w", err)
	}
	if err := os.Mkdir(set.MetricsDir, 0o755); err != nil {
		return DirSet{}, fmt.Errorf("creating metrics dir: %w", err)
	}

	if base.LogsDir != "" {
		if err := os.MkdirAll(base.LogsDir, 0o755); err != nil {
			return DirSet{}, fmt.Errorf("creating logs dir: %w", err)
		}
		set.LogFile = filepath.Join(base.LogsDir, prefix+".log")
	}

	if base.ArtifactsDir != "" {
		set.ArtifactsDir = filepath.Join(base.ArtifactsDir, prefix)
		if err := os.MkdirAll(base.ArtifactsDir, 0o755); err != nil {
			return DirSet{}, fmt.Errorf("creating artifacts base dir: %w", err)
		}
		if err := os.Mkdir(set.ArtifactsDir, 0o755); err != nil {
			return DirSet{}, fmt.Errorf("creating artifacts dir: %w", err)
		}
	}
	return set, nil
}
