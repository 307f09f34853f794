package metrics

import (
	"fmt"

	"exptrack/internal/tracker"
)

// networkSizeHandler aggregates metrics sampled at a set of network sizes.
// Records are buffered until the terminal flag, then all (x, y) samples are
// pooled by x, averaged per x, and averaged once more across sizes. Emits
// "<name>_at_<x>" per size and "<name>_avg" overall; the latter is the value
// meant as a sweep optimization objective. Method args may request a joined
// line-series chart with lineseries: true.
type networkSizeHandler struct{}

func (networkSizeHandler) Consume(run tracker.Run, agg *Aggregator, rec Record, args map[string]any, last bool) error {
	agg.Add(rec)
	if !last {
		return nil
	}

	records := agg.Take(rec.Name)
	if len(records) == 0 {
		return nil
	}

	// Pool all samples by x value, preserving first-seen x order.
	var order []float64
	samples := map[float64][]float64{}
	for _, r := range records {
		for i, x := range r.XValues {
			if _, seen := samples[x]; !seen {
				order = append(order, x)
			}
			samples[x] = append(samples[x], r.YValues[i])
		}
	}

	means := make([]float64, 0, len(order))
	var total float64
	for _, x := range order {
		var sum float64
		for _, y := range samples[x] {
			sum += y
		}
		mean := sum / float64(len(samples[x]))
		means = append(means, mean)
		total += mean
		if err := run.LogScalar(fmt.Sprintf("%s_at_%s", rec.Name, FormatX(x)), mean, false); err != nil {
			return err
		}
	}

	avg := total / float64(len(order))
	if err := run.LogScalar(rec.Name+"_avg", avg, true); err != nil {
		return err
	}

	if wantLineSeries(args) {
		return run.LogSeries(rec.Name+"_series", tracker.Series{
			Xs:    order,
			Ys:    means,
			Key:   run.Group(),
			Title: records[0].YAxis,
			XName: records[0].XAxis,
		})
	}
	return nil
}

func wantLineSeries(args map[string]any) bool {
	v, ok := args["lineseries"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
