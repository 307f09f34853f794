package metrics

import (
	"fmt"
	"strconv"
)

// Record is one parsed unit of metric output. XValues[i] pairs with
// YValues[i].
type Record struct {
	Type    string    `yaml:"type"`
	Name    string    `yaml:"metric-name"`
	XValues []float64 `yaml:"x-values"`
	YValues []float64 `yaml:"y-values"`
	XAxis   string    `yaml:"x-axis"`
	YAxis   string    `yaml:"y-axis"`
}

func (r *Record) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("metric record: missing type")
	}
	if r.Name == "" {
		return fmt.Errorf("metric record: missing metric-name")
	}
	if len(r.XValues) == 0 {
		return fmt.Errorf("metric record %q: missing x-values", r.Name)
	}
	if len(r.XValues) != len(r.YValues) {
		return fmt.Errorf("metric record %q: %d x-values but %d y-values",
			r.Name, len(r.XValues), len(r.YValues))
	}
	return nil
}

// FormatX renders an independent-variable value the way it appears in scalar
// names, dropping a trailing ".0" for whole numbers.
func FormatX(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
