package metrics

import "sort"

// Aggregator buffers records sharing a metric name until the terminal flag
// for that name arrives. It replaces hidden static state with an owned map:
// construct one per aggregation scope and pass it to every parsing call.
// Not safe for concurrent use; scopes must not share an instance.
type Aggregator struct {
	buf map[string][]Record
}

func NewAggregator() *Aggregator {
	return &Aggregator{buf: map[string][]Record{}}
}

// Add appends a record to the buffer entry for its metric name.
func (a *Aggregator) Add(rec Record) {
	a.buf[rec.Name] = append(a.buf[rec.Name], rec)
}

// Take removes and returns everything buffered for name. The entry is gone
// afterward, so each buffered list is reduced exactly once; a later Add for
// the same name starts a fresh aggregation.
func (a *Aggregator) Take(name string) []Record {
	records := a.buf[name]
	delete(a.buf, name)
	return records
}

// Pending lists metric names that have buffered records awaiting a terminal
// flag, sorted for stable output.
func (a *Aggregator) Pending() []string {
	names := make([]string, 0, len(a.buf))
	for name := range a.buf {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
