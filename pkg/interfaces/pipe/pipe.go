// Package pipe is the named-pipe transport: client and server exchange
// length-framed envelopes over a filesystem FIFO. One logical writer and one
// logical reader per pipe; the reader tolerates the writer going away and
// coming back.
package pipe

import (
	"errors"
	"os"
	"strings"

	"passiton/pkg/config"
	"passiton/pkg/interfaces"
	"passiton/pkg/logx"
)

// Config is the named-pipe variant of an interface record. The pipe is a
// shared OS object between independently-owned processes, so group/other
// permission bits are configurable.
type Config struct {
	Path       string `json:"path"`
	GroupRead  bool   `json:"group_read_permission,omitempty"`
	GroupWrite bool   `json:"group_write_permission,omitempty"`
	OtherRead  bool   `json:"other_read_permission,omitempty"`
	OtherWrite bool   `json:"other_write_permission,omitempty"`
}

// PipeInterface implements interfaces.Interface over a FIFO.
type PipeInterface struct {
	cfg Config
	log logx.Logger
}

// Factory adapts New to the registry contract.
func Factory(rec config.Record, log logx.Logger) (interfaces.Interface, error) {
	var cfg Config
	if err := rec.Decode(&cfg); err != nil {
		return nil, err
	}
	return New(cfg, log)
}

func New(cfg Config, log logx.Logger) (*PipeInterface, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("pipe interface: path is empty")
	}
	return &PipeInterface{
		cfg: cfg,
		log: log.With(logx.String("interface", "pipe"), logx.String("path", cfg.Path)),
	}, nil
}

func (p *PipeInterface) Name() string { return "pipe" }

func (p *PipeInterface) mode() os.FileMode {
	mode := os.FileMode(0o700)
	if p.cfg.GroupRead {
		mode |= 0o040
	}
	if p.cfg.GroupWrite {
		mode |= 0o020
	}
	if p.cfg.OtherRead {
		mode |= 0o004
	}
	if p.cfg.OtherWrite {
		mode |= 0o002
	}
	return mode
}
