// Package interfaces defines the transport contract between client and
// server. An Interface carries sealed envelopes over one kind of channel
// (HTTP, named pipe, ...) and is usable in two roles: sending on the client
// and listening on the server.
//
// New transports register a constructor in a Registry under their
// configuration discriminant; orchestration code never names concrete
// transports.
package interfaces

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"passiton/pkg/config"
	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

// Sender is the client role: transmit one envelope. Send is called from a
// single retry loop; transient transport errors are returned and retried by
// the caller's policy.
type Sender interface {
	Send(ctx context.Context, env notifications.Envelope) error
}

// Listener is the server role. Listen delivers one envelope to sink per wire
// message, in the order received on this transport, until ctx is cancelled.
// It must release its OS resources (socket, pipe handle) before returning.
// Malformed frames are logged and skipped; the stream continues.
type Listener interface {
	Listen(ctx context.Context, sink chan<- notifications.Envelope) error
}

// Interface is one configured transport, usable in either role.
type Interface interface {
	Name() string
	Sender
	Listener
}

// Factory builds an Interface from its configuration record.
type Factory func(rec config.Record, log logx.Logger) (Interface, error)

// Registry maps configuration discriminants to Interface constructors.
// Register transports explicitly at startup; construction of an unknown type
// is a fatal configuration error.
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

// Build constructs the Interface for one record.
func (r *Registry) Build(rec config.Record, log logx.Logger) (Interface, error) {
	r.mu.RLock()
	f, ok := r.factories[rec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown interface type %q (registered: %v)", rec.Type, r.Types())
	}
	return f(rec, log)
}

// BuildAll constructs every configured interface, failing on the first bad
// record.
func (r *Registry) BuildAll(recs []config.Record, log logx.Logger) ([]Interface, error) {
	out := make([]Interface, 0, len(recs))
	for i, rec := range recs {
		iface, err := r.Build(rec, log)
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", i, err)
		}
		out = append(out, iface)
	}
	return out, nil
}
