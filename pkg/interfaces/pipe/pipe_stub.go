//go:build !unix

package pipe

import (
	"context"
	"errors"

	"passiton/pkg/notifications"
)

var errUnsupported = errors.New("pipe interface: named pipes require a unix platform")

func (p *PipeInterface) Listen(ctx context.Context, sink chan<- notifications.Envelope) error {
	return errUnsupported
}

func (p *PipeInterface) Send(ctx context.Context, env notifications.Envelope) error {
	return errUnsupported
}
