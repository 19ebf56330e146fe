package pipe

import (
	"encoding/binary"
	"fmt"
	"io"

	"passiton/pkg/notifications"
)

// Frames are a 4-byte big-endian length followed by the binary envelope.
// The cap keeps a corrupted length prefix from stalling the reader on a
// multi-gigabyte ReadFull.
const maxFrameBytes = 16 << 20

var errFrameTooLarge = fmt.Errorf("pipe frame exceeds %d bytes", maxFrameBytes)

func writeFrame(w io.Writer, env notifications.Envelope) error {
	payload, err := env.MarshalBinary()
	if err != nil {
		return err
	}
	if len(payload) > maxFrameBytes {
		return errFrameTooLarge
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	_, err = w.Write(buf)
	return err
}

func readFrame(r io.Reader) (notifications.Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return notifications.Envelope{}, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameBytes {
		return notifications.Envelope{}, errFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return notifications.Envelope{}, err
	}
	var env notifications.Envelope
	if err := env.UnmarshalBinary(payload); err != nil {
		return notifications.Envelope{}, err
	}
	return env, nil
}
