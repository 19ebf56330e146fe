//go:build unix

package pipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

func (p *PipeInterface) ensureFifo() error {
	info, err := os.Stat(p.cfg.Path)
	switch {
	case err == nil:
		if info.Mode()&os.ModeNamedPipe == 0 {
			return fmt.Errorf("pipe interface: %s exists and is not a fifo", p.cfg.Path)
		}
		return nil
	case os.IsNotExist(err):
		if err := syscall.Mkfifo(p.cfg.Path, 0o600); err != nil {
			return fmt.Errorf("pipe interface: mkfifo: %w", err)
		}
		// Chmod after mkfifo so the configured bits survive the umask.
		if err := os.Chmod(p.cfg.Path, p.mode()); err != nil {
			return fmt.Errorf("pipe interface: chmod: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("pipe interface: %w", err)
	}
}

// openNonblock opens the FIFO without blocking for a peer. The returned
// *os.File is registered with the runtime poller, so reads/writes park the
// goroutine and Close unblocks them.
func openNonblock(path string, flag int) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

// Listen creates the FIFO (if needed), reads frames and forwards them to
// sink until ctx is cancelled, then removes the FIFO.
//
// The listener holds its own write end open alongside the read end. That
// keeps the read side from seeing EOF whenever the client process closes or
// restarts: reads simply block until the next writer shows up, which is the
// reconnect tolerance the pipe contract requires.
func (p *PipeInterface) Listen(ctx context.Context, sink chan<- notifications.Envelope) error {
	if err := p.ensureFifo(); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(p.cfg.Path); err != nil && !os.IsNotExist(err) {
			p.log.Warn("could not remove fifo on shutdown", logx.Err(err))
		}
	}()

	for ctx.Err() == nil {
		if err := p.listenOnce(ctx, sink); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.log.Warn("pipe stream error; reopening", logx.Err(err))
			// The FIFO may have been removed underneath us.
			if err := p.ensureFifo(); err != nil {
				return err
			}
		}
	}
	p.log.Info("pipe listener stopped")
	return ctx.Err()
}

func (p *PipeInterface) listenOnce(ctx context.Context, sink chan<- notifications.Envelope) error {
	reader, err := openNonblock(p.cfg.Path, syscall.O_RDONLY)
	if err != nil {
		return fmt.Errorf("pipe interface: open read end: %w", err)
	}
	// Dummy write end; see Listen.
	holder, err := openNonblock(p.cfg.Path, syscall.O_WRONLY)
	if err != nil {
		_ = reader.Close()
		return fmt.Errorf("pipe interface: open holder end: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = reader.Close()
			_ = holder.Close()
		case <-done:
		}
	}()
	defer func() {
		close(done)
		_ = reader.Close()
		_ = holder.Close()
	}()

	p.log.Info("pipe listener started")
	for {
		env, err := readFrame(reader)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Writer went away mid-frame; reopen and resume.
				return nil
			}
			// Malformed frame: drop it and resynchronize by reopening.
			return err
		}
		select {
		case sink <- env:
		case <-ctx.Done():
			return nil
		}
	}
}

// Send opens the pipe for writing, emits one frame and closes it again. If no
// reader has the pipe open the open fails with ENXIO, which is a transient
// transport error for the client's retry loop.
func (p *PipeInterface) Send(ctx context.Context, env notifications.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := openNonblock(p.cfg.Path, syscall.O_WRONLY)
	if err != nil {
		if errors.Is(err, syscall.ENXIO) {
			return fmt.Errorf("pipe send: no reader on %s: %w", p.cfg.Path, err)
		}
		return fmt.Errorf("pipe send: %w", err)
	}
	defer f.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = f.SetWriteDeadline(deadline)
	}
	if err := writeFrame(f, env); err != nil {
		return fmt.Errorf("pipe send: %w", err)
	}
	return nil
}
