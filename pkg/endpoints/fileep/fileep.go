// Package fileep appends notification text to a plain file, one line per
// notification. The simplest useful destination and the reference endpoint
// for tests.
package fileep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"passiton/pkg/config"
	"passiton/pkg/endpoints"
	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

type Config struct {
	Path string `json:"path"`
}

// FileEndpoint holds the file open for the server's lifetime. Deliveries are
// serialized under a mutex so concurrent fan-out never interleaves lines.
type FileEndpoint struct {
	path string
	log  logx.Logger

	mu sync.Mutex
	f  *os.File
}

// Factory adapts New to the registry contract.
func Factory(rec config.EndpointRecord, log logx.Logger) (endpoints.Endpoint, error) {
	var cfg Config
	if err := rec.Decode(&cfg); err != nil {
		return nil, err
	}
	return New(cfg, log)
}

func New(cfg Config, log logx.Logger) (*FileEndpoint, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("file endpoint: path is empty")
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file endpoint: %w", err)
	}
	return &FileEndpoint{
		path: cfg.Path,
		log:  log.With(logx.String("endpoint", "file"), logx.String("path", cfg.Path)),
		f:    f,
	}, nil
}

func (e *FileEndpoint) Name() string { return "file" }

func (e *FileEndpoint) Deliver(ctx context.Context, n notifications.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return errors.New("file endpoint: closed")
	}
	if _, err := e.f.WriteString(n.Message.Text + "\n"); err != nil {
		return fmt.Errorf("file endpoint: %w", err)
	}
	return nil
}

func (e *FileEndpoint) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}
