// Package endpoints defines the destination contract on the server side. An
// Endpoint delivers decoded notifications somewhere outside the relay: a
// file, a chat, a database. Endpoints subscribe to notification names through
// their configuration record; the router owns the name-to-endpoint mapping.
package endpoints

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"passiton/pkg/config"
	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

// Endpoint is one configured destination. Deliver handles a single
// notification; a failed delivery must leave the endpoint usable for the
// next one. Close releases held resources at server shutdown.
type Endpoint interface {
	Name() string
	Deliver(ctx context.Context, n notifications.Notification) error
	Close(ctx context.Context) error
}

// Binding pairs a constructed endpoint with the notification names it
// subscribed to in configuration.
type Binding struct {
	Endpoint      Endpoint
	Notifications []string
}

// Factory builds an Endpoint from its configuration record.
type Factory func(rec config.EndpointRecord, log logx.Logger) (Endpoint, error)

// Registry maps configuration discriminants to Endpoint constructors, the
// same shape as the transport registry. Unknown types fail construction.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(discriminant string, f Factory) {
	r.mu.Lock()
	r.factories[discriminant] = f
	r.mu.Unlock()
}

// Types returns the registered discriminants, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build constructs the endpoint for one record and binds it to the record's
// subscriptions.
func (r *Registry) Build(rec config.EndpointRecord, log logx.Logger) (Binding, error) {
	r.mu.RLock()
	f, ok := r.factories[rec.Type]
	r.mu.RUnlock()
	if !ok {
		return Binding{}, fmt.Errorf("unknown endpoint type %q (registered: %v)", rec.Type, r.Types())
	}
	ep, err := f(rec, log)
	if err != nil {
		return Binding{}, err
	}
	return Binding{Endpoint: ep, Notifications: append([]string(nil), rec.Notifications...)}, nil
}

// BuildAll constructs every configured endpoint, failing on the first bad
// record.
func (r *Registry) BuildAll(recs []config.EndpointRecord, log logx.Logger) ([]Binding, error) {
	out := make([]Binding, 0, len(recs))
	for i, rec := range recs {
		b, err := r.Build(rec, log)
		if err != nil {
			return nil, fmt.Errorf("endpoint %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}
