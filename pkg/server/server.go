// Package server is the receiving half of the relay. Listeners collect
// sealed envelopes from every configured transport into one inbound stream;
// the dispatcher authenticates each envelope and hands the notification to
// every endpoint subscribed to its name. A failing endpoint never affects
// the others.
package server

import (
	"context"
	"errors"
	"time"

	"passiton/internal/supervisor"
	"passiton/pkg/config"
	"passiton/pkg/endpoints"
	"passiton/pkg/interfaces"
	"passiton/pkg/logx"
	"passiton/pkg/notifications"
	"passiton/pkg/router"
)

const (
	defaultGracePeriod   = 2 * time.Second
	defaultInboundBuffer = 128
	endpointQueueSize    = 32
)

type Server struct {
	key      notifications.Key
	ifaces   []interfaces.Interface
	bindings []endpoints.Binding
	table    *router.Table
	log      logx.Logger

	grace   time.Duration
	inbound int
}

type Option func(*Server)

// WithGracePeriod bounds how long shutdown waits for listeners and
// in-flight deliveries.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithInboundBuffer sizes the shared envelope channel.
func WithInboundBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.inbound = n
		}
	}
}

func New(key notifications.Key, ifaces []interfaces.Interface, bindings []endpoints.Binding, log logx.Logger, opts ...Option) (*Server, error) {
	if len(ifaces) == 0 {
		return nil, errors.New("server: no interfaces configured")
	}
	table, err := router.New(bindings)
	if err != nil {
		return nil, err
	}
	s := &Server{
		key:      key,
		ifaces:   ifaces,
		bindings: bindings,
		table:    table,
		log:      log,
		grace:    defaultGracePeriod,
		inbound:  defaultInboundBuffer,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// FromConfig validates cfg and builds the configured transports and
// endpoints from their registries.
func FromConfig(cfg config.Server, ifaceReg *interfaces.Registry, epReg *endpoints.Registry, log logx.Logger, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := notifications.NewKey(cfg.Key)
	if err != nil {
		return nil, err
	}
	ifaces, err := ifaceReg.BuildAll(cfg.Interfaces, log)
	if err != nil {
		return nil, err
	}
	bindings, err := epReg.BuildAll(cfg.Endpoints, log)
	if err != nil {
		return nil, err
	}
	return New(key, ifaces, bindings, log, opts...)
}

// Run blocks until ctx is cancelled, then drains within the grace period and
// closes every endpoint best-effort.
func (s *Server) Run(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(s.log))
	inbound := make(chan notifications.Envelope, s.inbound)

	// A crashing listener self-heals; a dead transport must not take the
	// relay down with it.
	for _, iface := range s.ifaces {
		iface := iface
		sup.GoRestart("server.listen."+iface.Name(), func(ctx context.Context) error {
			return iface.Listen(ctx, inbound)
		})
	}

	// One worker per endpoint keeps deliveries ordered per destination and
	// isolates a slow or failing endpoint from the rest.
	queues := make(map[endpoints.Endpoint]chan notifications.Notification, len(s.bindings))
	for _, b := range s.bindings {
		ep := b.Endpoint
		q := make(chan notifications.Notification, endpointQueueSize)
		queues[ep] = q
		sup.Go("server.deliver."+ep.Name(), func(ctx context.Context) error {
			return s.deliverLoop(ctx, ep, q)
		})
	}

	sup.Go("server.dispatch", func(ctx context.Context) error {
		return s.dispatch(ctx, inbound, queues)
	})

	s.log.Info("server started",
		logx.Int("interfaces", len(s.ifaces)),
		logx.Int("endpoints", len(s.bindings)),
		logx.Int("routes", s.table.Names()))

	<-ctx.Done()

	waitCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	if err := sup.Wait(waitCtx); errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("grace period expired; abandoning in-flight deliveries")
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), s.grace)
	defer cancelClose()
	for _, b := range s.bindings {
		if err := b.Endpoint.Close(closeCtx); err != nil {
			s.log.Warn("endpoint close failed", logx.String("endpoint", b.Endpoint.Name()), logx.Err(err))
		}
	}
	s.log.Info("server stopped")
	return nil
}

// dispatch authenticates inbound envelopes and routes notifications to the
// subscribed endpoint queues. Envelopes that fail authentication are dropped
// with a warning; unauthenticated bytes never reach an endpoint.
func (s *Server) dispatch(ctx context.Context, inbound <-chan notifications.Envelope, queues map[endpoints.Endpoint]chan notifications.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-inbound:
			n, err := notifications.Decode(s.key, env)
			if err != nil {
				s.log.Warn("dropping envelope", logx.Err(err))
				continue
			}
			eps := s.table.Lookup(n.Name)
			if len(eps) == 0 {
				s.log.Info("no subscribers; dropping notification",
					logx.String("name", n.Name), logx.String("id", n.Message.ID))
				continue
			}
			for _, ep := range eps {
				select {
				case queues[ep] <- n:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (s *Server) deliverLoop(ctx context.Context, ep endpoints.Endpoint, q <-chan notifications.Notification) error {
	log := s.log.With(logx.String("endpoint", ep.Name()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-q:
			if err := ep.Deliver(ctx, n); err != nil {
				log.Error("delivery failed",
					logx.String("name", n.Name), logx.String("id", n.Message.ID), logx.Err(err))
				continue
			}
			log.Debug("delivered", logx.String("name", n.Name), logx.String("id", n.Message.ID))
		}
	}
}
