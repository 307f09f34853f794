package metrics

import (
	"sort"

	"exptrack/internal/tracker"
)

// Handler consumes one record for its metric type and emits tracked data
// when the terminal flag arrives.
type Handler interface {
	Consume(run tracker.Run, agg *Aggregator, rec Record, args map[string]any, last bool) error
}

var handlers = map[string]Handler{}

// RegisterHandler adds a metric-type handler under the given type tag.
// Custom metric types register here.
func RegisterHandler(typeTag string, h Handler) {
	handlers[typeTag] = h
}

func LookupHandler(typeTag string) (Handler, bool) {
	h, ok := handlers[typeTag]
	return h, ok
}

func HandlerNames() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterHandler("network-size", networkSizeHandler{})
}
