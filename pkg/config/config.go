package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingKey: client and server both require a shared secret.
	ErrMissingKey = errors.New("configuration key is empty")
	// ErrMissingInterface: at least one interface must be defined.
	ErrMissingInterface = errors.New("at least one interface must be defined")
	// ErrMissingEndpoint: a server needs at least one endpoint.
	ErrMissingEndpoint = errors.New("at least one endpoint must be defined")
	// ErrNoSubscriptions: every endpoint must subscribe to at least one name.
	ErrNoSubscriptions = errors.New("endpoint subscribes to no notification names")
	// ErrWildcardSubscription: subscriptions are exact-name matches only.
	ErrWildcardSubscription = errors.New("wildcard subscriptions are not supported")
)

// Client is the configuration for a client process: the shared key and the
// interfaces notifications are sent over.
type Client struct {
	Key        string   `json:"key"`
	Interfaces []Record `json:"interface"`
}

// Server is the configuration for a server process: the shared key, the
// interfaces listened on, and the endpoints notifications fan out to.
type Server struct {
	Key        string           `json:"key"`
	Interfaces []Record         `json:"interface"`
	Endpoints  []EndpointRecord `json:"endpoint"`
}

func (c *Client) Validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return ErrMissingKey
	}
	if len(c.Interfaces) == 0 {
		return ErrMissingInterface
	}
	return nil
}

func (s *Server) Validate() error {
	if strings.TrimSpace(s.Key) == "" {
		return ErrMissingKey
	}
	if len(s.Interfaces) == 0 {
		return ErrMissingInterface
	}
	if len(s.Endpoints) == 0 {
		return ErrMissingEndpoint
	}
	for i, ep := range s.Endpoints {
		if len(ep.Notifications) == 0 {
			return fmt.Errorf("endpoint %d (%s): %w", i, ep.Type, ErrNoSubscriptions)
		}
		for _, name := range ep.Notifications {
			trimmed := strings.TrimSpace(name)
			if trimmed == "" {
				return fmt.Errorf("endpoint %d (%s): empty notification name", i, ep.Type)
			}
			if strings.ContainsAny(trimmed, "*?") {
				return fmt.Errorf("endpoint %d (%s) name %q: %w", i, ep.Type, name, ErrWildcardSubscription)
			}
		}
	}
	return nil
}
