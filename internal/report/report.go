package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"exptrack/internal/tracker"
)

// GroupSummary aggregates the tracked runs of one group in the offline store.
type GroupSummary struct {
	Group        string             `json:"group"`
	Project      string             `json:"project"`
	Runs         int                `json:"runs"`
	Finished     int                `json:"finished"`
	MeanDuration float64            `json:"mean_duration_secs"`
	Objectives   map[string]float64 `json:"objectives"`
}

// Generate reads the offline tracking store and writes a per-group summary:
// run counts, mean duration, and the mean of every committed "*_avg" metric.
func Generate(store *tracker.Store, format string, w io.Writer) error {
	summaries, err := collect(store.DB())
	if err != nil {
		return err
	}

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

func collect(db *sql.DB) ([]GroupSummary, error) {
	rows, err := db.Query(`
		SELECT group_id, project, COUNT(*),
		       SUM(CASE WHEN finished_at IS NOT NULL THEN 1 ELSE 0 END)
		FROM runs GROUP BY group_id, project`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	byGroup := map[string]*GroupSummary{}
	var order []string
	for rows.Next() {
		s := &GroupSummary{Objectives: map[string]float64{}}
		if err := rows.Scan(&s.Group, &s.Project, &s.Runs, &s.Finished); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		byGroup[s.Group] = s
		order = append(order, s.Group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scalarRows, err := db.Query(`
		SELECT r.group_id, s.name, AVG(s.value)
		FROM scalars s JOIN runs r ON r.id = s.run_id
		WHERE s.name = 'duration_secs' OR s.name LIKE '%\_avg' ESCAPE '\'
		GROUP BY r.group_id, s.name`)
	if err != nil {
		return nil, fmt.Errorf("querying scalars: %w", err)
	}
	defer scalarRows.Close()

	for scalarRows.Next() {
		var group, name string
		var mean float64
		if err := scalarRows.Scan(&group, &name, &mean); err != nil {
			return nil, fmt.Errorf("scanning scalar row: %w", err)
		}
		s, ok := byGroup[group]
		if !ok {
			continue
		}
		if name == "duration_secs" {
			s.MeanDuration = mean
		} else {
			s.Objectives[name] = mean
		}
	}
	if err := scalarRows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(order)
	summaries := make([]GroupSummary, 0, len(order))
	for _, group := range order {
		summaries = append(summaries, *byGroup[group])
	}
	return summaries, nil
}

func writeTable(summaries []GroupSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tPROJECT\tRUNS\tFINISHED\tMEAN DURATION\tOBJECTIVES")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.Group, s.Project, s.Runs, s.Finished,
			formatDuration(s.MeanDuration), formatObjectives(s.Objectives))
	}
	return tw.Flush()
}

func writeMarkdown(summaries []GroupSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Group | Project | Runs | Finished | Mean Duration | Objectives |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %s | %d | %d | %s | %s |\n",
			s.Group, s.Project, s.Runs, s.Finished,
			formatDuration(s.MeanDuration), formatObjectives(s.Objectives))
	}
	return nil
}

func writeJSON(summaries []GroupSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}

func formatDuration(secs float64) string {
	if secs == 0 {
		return "-"
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Millisecond).String()
}

func formatObjectives(objectives map[string]float64) string {
	if len(objectives) == 0 {
		return "-"
	}
	names := make([]string, 0, len(objectives))
	for name := range objectives {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, humanize.CommafWithDigits(objectives[name], 4)))
	}
	return strings.Join(parts, " ")
}
