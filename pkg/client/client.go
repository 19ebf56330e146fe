// Package client is the sending half of the relay. The embedding application
// queues ClientReadyMessages; the client seals each one under the shared key
// and broadcasts it over every configured transport, retrying transport
// failures until shutdown.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"passiton/internal/supervisor"
	"passiton/pkg/config"
	"passiton/pkg/interfaces"
	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

const (
	defaultQueueSize   = 64
	defaultGracePeriod = 2 * time.Second
	minSendBackoff     = 250 * time.Millisecond
	maxSendBackoff     = 30 * time.Second
)

type schedule struct {
	spec string
	name string
	text string
}

// Client fans queued messages out to its transports. Construct with New or
// FromConfig, feed it through Queue, drive it with Run.
type Client struct {
	key    notifications.Key
	ifaces []interfaces.Interface
	log    logx.Logger

	queue     chan notifications.ClientReadyMessage
	queueSize int
	limiter   *rate.Limiter
	schedules []schedule
	grace     time.Duration
}

type Option func(*Client)

// WithQueueSize bounds the intake queue. A full queue blocks the producer;
// messages are never silently dropped.
func WithQueueSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithRateLimit paces sends across all transports.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithSchedule queues a notification with the given name and text on a cron
// schedule (standard 5-field spec).
func WithSchedule(cronSpec, name, text string) Option {
	return func(c *Client) {
		c.schedules = append(c.schedules, schedule{spec: cronSpec, name: name, text: text})
	}
}

// WithGracePeriod bounds how long shutdown waits for in-flight sends.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.grace = d
		}
	}
}

func New(key notifications.Key, ifaces []interfaces.Interface, log logx.Logger, opts ...Option) (*Client, error) {
	if len(ifaces) == 0 {
		return nil, errors.New("client: no interfaces configured")
	}
	c := &Client{
		key:       key,
		ifaces:    ifaces,
		log:       log,
		queueSize: defaultQueueSize,
		grace:     defaultGracePeriod,
	}
	for _, o := range opts {
		o(c)
	}
	c.queue = make(chan notifications.ClientReadyMessage, c.queueSize)
	return c, nil
}

// FromConfig validates cfg, derives the key and builds the configured
// transports from the registry.
func FromConfig(cfg config.Client, reg *interfaces.Registry, log logx.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := notifications.NewKey(cfg.Key)
	if err != nil {
		return nil, err
	}
	ifaces, err := reg.BuildAll(cfg.Interfaces, log)
	if err != nil {
		return nil, err
	}
	return New(key, ifaces, log, opts...)
}

// Queue is the intake channel. Sends block when the queue is full.
func (c *Client) Queue() chan<- notifications.ClientReadyMessage {
	return c.queue
}

// Run blocks until ctx is cancelled, then waits up to the grace period for
// in-flight sends before returning.
func (c *Client) Run(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(c.log))

	feeds := make([]chan notifications.ClientReadyMessage, len(c.ifaces))
	for i := range feeds {
		feeds[i] = make(chan notifications.ClientReadyMessage, c.queueSize)
	}

	sup.Go("client.fanout", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg := <-c.queue:
				for _, feed := range feeds {
					select {
					case feed <- msg:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		}
	})

	for i, iface := range c.ifaces {
		feed := feeds[i]
		iface := iface
		sup.Go("client.send."+iface.Name(), func(ctx context.Context) error {
			return c.sendLoop(ctx, iface, feed)
		})
	}

	if len(c.schedules) > 0 {
		if err := c.startScheduler(sup); err != nil {
			sup.Cancel()
			_ = sup.Wait(context.Background())
			return err
		}
	}

	<-ctx.Done()

	waitCtx, cancel := context.WithTimeout(context.Background(), c.grace)
	defer cancel()
	if err := sup.Wait(waitCtx); errors.Is(err, context.DeadlineExceeded) {
		c.log.Warn("grace period expired; abandoning in-flight sends")
	}
	return nil
}

func (c *Client) startScheduler(sup *supervisor.Supervisor) error {
	cr := cron.New()
	for _, s := range c.schedules {
		s := s
		_, err := cr.AddFunc(s.spec, func() {
			msg := notifications.NewMessage(s.text).Ready(s.name)
			select {
			case c.queue <- msg:
			case <-sup.Context().Done():
			}
		})
		if err != nil {
			return fmt.Errorf("client: schedule %q: %w", s.spec, err)
		}
	}
	cr.Start()
	sup.Go("client.scheduler", func(ctx context.Context) error {
		<-ctx.Done()
		<-cr.Stop().Done()
		return ctx.Err()
	})
	return nil
}

// sendLoop drains one transport's feed. A message dequeued before shutdown
// gets one last bounded attempt so a flaky transport does not swallow it
// silently.
func (c *Client) sendLoop(ctx context.Context, iface interfaces.Interface, feed <-chan notifications.ClientReadyMessage) error {
	log := c.log.With(logx.String("interface", iface.Name()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-feed:
			if err := c.deliver(ctx, iface, log, msg); err == nil {
				continue
			}
			graceCtx, cancel := context.WithTimeout(context.Background(), c.grace)
			err := c.send(graceCtx, iface, msg)
			cancel()
			if err != nil {
				log.Warn("abandoning notification at shutdown",
					logx.String("name", msg.Name), logx.String("id", msg.Message.ID), logx.Err(err))
			}
			return ctx.Err()
		}
	}
}

// deliver retries until the transport accepts the envelope or ctx is
// cancelled. Each attempt encodes fresh, so every retry carries a new nonce.
func (c *Client) deliver(ctx context.Context, iface interfaces.Interface, log logx.Logger, msg notifications.ClientReadyMessage) error {
	backoff := minSendBackoff
	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		err := c.send(ctx, iface, msg)
		if err == nil {
			if attempt > 1 {
				log.Info("send succeeded after retries", logx.Int("attempts", attempt), logx.String("id", msg.Message.ID))
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := backoff
		if j := int64(wait) / 5; j > 0 {
			wait += time.Duration(time.Now().UnixNano() % (j + 1))
		}
		log.Warn("send failed; retrying",
			logx.Int("attempt", attempt), logx.Duration("backoff", wait), logx.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
		if backoff > maxSendBackoff {
			backoff = maxSendBackoff
		}
	}
}

func (c *Client) send(ctx context.Context, iface interfaces.Interface, msg notifications.ClientReadyMessage) error {
	env, err := notifications.Encode(c.key, msg.Notification())
	if err != nil {
		return err
	}
	return iface.Send(ctx, env)
}
