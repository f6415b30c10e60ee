// Package helpers tracks which runtime helper functions generated code
// calls and provides their definitions.
package helpers

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Module is the package external helpers are loaded from.
const Module = "@kiln/helpers"

//go:embed js/*.js
var sources embed.FS

// deps lists the helpers each helper calls.
var deps = map[string][]string{
	"_createClass":                {"_defineProperties"},
	"_inherits":                   {"_setPrototypeOf"},
	"_possibleConstructorReturn":  {"_typeof", "_assertThisInitialized"},
	"_superPropBase":              {"_getPrototypeOf"},
	"_get":                        {"_superPropBase"},
	"_objectSpread":               {"_defineProperty"},
	"_arrayWithoutHoles":          {"_arrayLikeToArray"},
	"_unsupportedIterableToArray": {"_arrayLikeToArray"},
	"_toConsumableArray":          {"_arrayWithoutHoles", "_iterableToArray", "_unsupportedIterableToArray", "_nonIterableSpread"},
	"_asyncToGenerator":           {"_asyncGeneratorStep"},
	"_interopRequireWildcard":     {"_typeof"},
}

// Names returns every known helper name, sorted.
func Names() []string {
	entries, err := sources.ReadDir("js")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".js"))
	}
	sort.Strings(names)
	return names
}

// Source returns the definition of a helper.
func Source(name string) (string, error) {
	b, err := sources.ReadFile("js/" + name + ".js")
	if err != nil {
		return "", fmt.Errorf("unknown helper %q", name)
	}
	return string(b), nil
}

// Registry records the helpers one compile needs. Each compile owns its
// registry, so concurrent compiles never share bookkeeping.
type Registry struct {
	mu   sync.Mutex
	used map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{used: map[string]bool{}}
}

// Use marks a helper as needed and returns its name for use in generated
// code.
func (r *Registry) Use(name string) string {
	r.mu.Lock()
	r.used[name] = true
	r.mu.Unlock()
	return name
}

// Has reports whether a helper was requested directly.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used[name]
}

// Used returns the requested helpers plus everything they depend on, each
// dependency before its dependents and otherwise in name order.
func (r *Registry) Used() []string {
	r.mu.Lock()
	roots := make([]string, 0, len(r.used))
	for name := range r.used {
		roots = append(roots, name)
	}
	r.mu.Unlock()
	sort.Strings(roots)

	var order []string
	seen := map[string]bool{}
	var visit func(string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, d := range deps[name] {
			visit(d)
		}
		order = append(order, name)
	}
	for _, name := range roots {
		visit(name)
	}
	return order
}
