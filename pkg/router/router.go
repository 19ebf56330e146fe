// Package router maps notification names to the endpoints subscribed to
// them. The table is built once from configuration and read-only afterwards,
// so lookups need no locking.
package router

import (
	"fmt"
	"strings"

	"passiton/pkg/endpoints"
)

// Table is the dispatch table. Matching is exact and case-sensitive; a name
// either has subscribers or it does not.
type Table struct {
	byName map[string][]endpoints.Endpoint
}

// New builds the table from endpoint bindings. Subscriptions must be literal
// names: empty names and glob characters are configuration errors, as is the
// same endpoint subscribing to the same name twice.
func New(bindings []endpoints.Binding) (*Table, error) {
	byName := make(map[string][]endpoints.Endpoint)
	seen := make(map[string]map[endpoints.Endpoint]bool)
	for i, b := range bindings {
		if b.Endpoint == nil {
			return nil, fmt.Errorf("binding %d: nil endpoint", i)
		}
		for _, name := range b.Notifications {
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, fmt.Errorf("binding %d (%s): empty notification name", i, b.Endpoint.Name())
			}
			if strings.ContainsAny(name, "*?") {
				return nil, fmt.Errorf("binding %d (%s): notification name %q: patterns are not supported, use exact names", i, b.Endpoint.Name(), name)
			}
			if seen[name] == nil {
				seen[name] = make(map[endpoints.Endpoint]bool)
			}
			if seen[name][b.Endpoint] {
				return nil, fmt.Errorf("binding %d (%s): duplicate subscription to %q", i, b.Endpoint.Name(), name)
			}
			seen[name][b.Endpoint] = true
			byName[name] = append(byName[name], b.Endpoint)
		}
	}
	return &Table{byName: byName}, nil
}

// Lookup returns the endpoints subscribed to name, in configuration order.
// An unknown name returns an empty slice; the caller logs and drops.
func (t *Table) Lookup(name string) []endpoints.Endpoint {
	return t.byName[name]
}

// Names returns how many distinct notification names have subscribers.
func (t *Table) Names() int {
	return len(t.byName)
}
