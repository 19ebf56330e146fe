// Package httpiface is the HTTP transport: the client POSTs envelopes to a
// fixed path, the server listens on a host:port (optionally under TLS) and
// hands decoded envelopes to the orchestrator.
package httpiface

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"passiton/pkg/config"
	"passiton/pkg/interfaces"
	"passiton/pkg/logx"
)

// Version is served by the version endpoint for liveness/compat probing.
const Version = "0.1.0"

const (
	notificationsPath = "/pass-it-on/notifications"
	versionPath       = "/pass-it-on/version"

	requestTimeout = 10 * time.Second
	shutdownGrace  = time.Second
	maxBodyBytes   = 1 << 20
)

// Config is the HTTP variant of an interface record.
//
// A client configures either a full URL or host/port; a server configures
// host/port. An https:// URL turns TLS on even when the tls flag is absent --
// the flag can only add TLS, never strip it from a secure URL.
type Config struct {
	URL     string `json:"url,omitempty"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
	TLS     *bool  `json:"tls,omitempty"`
	TLSCert string `json:"tls_cert,omitempty"`
	TLSKey  string `json:"tls_key,omitempty"`
}

// HTTPInterface implements interfaces.Interface over HTTP.
type HTTPInterface struct {
	cfg    Config
	log    logx.Logger
	base   string
	useTLS bool
	client *http.Client
}

// Factory adapts New to the registry contract.
func Factory(rec config.Record, log logx.Logger) (interfaces.Interface, error) {
	var cfg Config
	if err := rec.Decode(&cfg); err != nil {
		return nil, err
	}
	return New(cfg, log)
}

func New(cfg Config, log logx.Logger) (*HTTPInterface, error) {
	useTLS, err := resolveTLS(cfg)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		host := strings.TrimSpace(cfg.Host)
		if host == "" {
			host = "127.0.0.1"
		}
		if cfg.Port <= 0 || cfg.Port > 65535 {
			return nil, fmt.Errorf("http interface: invalid port %d", cfg.Port)
		}
		scheme := "http"
		if useTLS {
			scheme = "https"
		}
		base = scheme + "://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	}

	return &HTTPInterface{
		cfg:    cfg,
		log:    log.With(logx.String("interface", "http")),
		base:   base,
		useTLS: useTLS,
		client: &http.Client{Timeout: requestTimeout},
	}, nil
}

func (h *HTTPInterface) Name() string { return "http" }

// TLSEnabled reports whether this interface uses TLS.
func (h *HTTPInterface) TLSEnabled() bool { return h.useTLS }

// resolveTLS decides whether TLS is on. The https scheme wins over an unset
// or false flag; this default was historically easy to get wrong, so it is
// pinned by tests.
func resolveTLS(cfg Config) (bool, error) {
	if u := strings.TrimSpace(cfg.URL); u != "" {
		parsed, err := url.Parse(u)
		if err != nil {
			return false, fmt.Errorf("http interface: parse url: %w", err)
		}
		switch parsed.Scheme {
		case "https":
			return true, nil
		case "http":
			if cfg.TLS != nil && *cfg.TLS {
				return false, fmt.Errorf("http interface: tls enabled but url scheme is http")
			}
			return false, nil
		default:
			return false, fmt.Errorf("http interface: unsupported url scheme %q", parsed.Scheme)
		}
	}
	return cfg.TLS != nil && *cfg.TLS, nil
}

func (h *HTTPInterface) bindAddr() string {
	host := strings.TrimSpace(h.cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(h.cfg.Port))
}
