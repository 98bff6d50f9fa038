package sites

import (
	"sort"
	"strings"
)

var registry = map[string]Extractor{}

// Register adds an extractor to the registry. Site packages call this from
// init() and are blank-imported by main.
func Register(e Extractor) {
	registry[strings.ToLower(e.Name())] = e
}

// Get returns the extractor registered under name.
func Get(name string) (Extractor, bool) {
	e, ok := registry[strings.ToLower(name)]
	return e, ok
}

// All returns every registered extractor, sorted by name so runs are
// reproducible.
func All() []Extractor {
	out := make([]Extractor, 0, len(registry))
	for _, e := range registry {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the sorted registered site names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
