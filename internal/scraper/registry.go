package scraper

import (
	"context"
	"sort"
	"strings"
)

// Factory opens a fetch engine.
type Factory func(ctx context.Context, opts Options) (Fetcher, error)

var registry = map[string]Factory{}

func Register(name string, f Factory) {
	registry[strings.ToLower(name)] = f
}

func Get(name string) (Factory, bool) {
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// Engines returns the registered engine names in sorted order.
func Engines() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
