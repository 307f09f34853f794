package parse

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"exptrack/internal/logutil"
	"exptrack/internal/metrics"
	"exptrack/internal/tracker"
)

func init() {
	RegisterMetrics("default", defaultParseMetrics)
	RegisterLogfile("default", defaultParseLogfile)
	RegisterArtifacts("default", defaultParseArtifacts)
}

// defaultParseMetrics decodes every *.yaml file in the directory and feeds
// each record to the handler registered for its metric type. Files with an
// unsupported type are skipped with a warning; siblings still get processed.
// In the last directory the terminal flag is raised only on the final record
// seen for each metric name, so every buffered list flushes exactly once.
func defaultParseMetrics(run tracker.Run, agg *metrics.Aggregator, dir string, args map[string]any, last bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading metrics dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	var records []metrics.Record
	handlersByIdx := make([]metrics.Handler, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading metric file %s: %w", path, err)
		}
		var rec metrics.Record
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("parsing metric file %s: %w", path, err)
		}
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("metric file %s: %w", path, err)
		}
		handler, ok := metrics.LookupHandler(rec.Type)
		if !ok {
			logutil.L().Warn("unsupported metric type; skipping file",
				zap.String("file", path), zap.String("type", rec.Type))
			continue
		}
		records = append(records, rec)
		handlersByIdx = append(handlersByIdx, handler)
	}

	// Index of the final record per metric name, consulted only when this is
	// the batch's last directory.
	lastIdx := map[string]int{}
	for i, rec := range records {
		lastIdx[rec.Name] = i
	}

	for i, rec := range records {
		terminal := last && lastIdx[rec.Name] == i
		if err := handlersByIdx[i].Consume(run, agg, rec, args, terminal); err != nil {
			return fmt.Errorf("handling metric %q: %w", rec.Name, err)
		}
	}
	return nil
}

// defaultParseLogfile uploads the run log as a one-column table. A missing
// log file is not an error; the experiment may simply not have written one.
func defaultParseLogfile(run tracker.Run, path string, args map[string]any) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking log file: %w", err)
	}

	var rows [][]string
	if !info.Mode().IsRegular() {
		rows = [][]string{{fmt.Sprintf("ERROR: Path '%s' is not a regular file.", path)}}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			rows = append(rows, []string{scanner.Text()})
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading log file: %w", err)
		}
	}
	return run.UploadTable("logfile", []string{"Logfile"}, rows)
}

// defaultParseArtifacts uploads the whole artifact directory as-is.
func defaultParseArtifacts(run tracker.Run, dir string, args map[string]any) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return run.UploadArtifactDir("artifacts", dir)
}
