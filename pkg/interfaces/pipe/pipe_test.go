//go:build unix

package pipe

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

func testKey(t *testing.T) notifications.Key {
	t.Helper()
	k, err := notifications.NewKey("pipe-secret")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	return k
}

func testEnvelope(t *testing.T, key notifications.Key, name, text string) notifications.Envelope {
	t.Helper()
	env, err := notifications.Encode(key, notifications.NewMessage(text).Ready(name).Notification())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return env
}

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()
	key := testKey(t)
	env := testEnvelope(t, key, "a", "hello")

	var buf bytes.Buffer
	if err := writeFrame(&buf, env); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if _, err := notifications.Decode(key, got); err != nil {
		t.Fatalf("Decode after frame round trip: %v", err)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], maxFrameBytes+1)
	buf.Write(header[:])

	if _, err := readFrame(&buf); !errors.Is(err, errFrameTooLarge) {
		t.Fatalf("expected errFrameTooLarge, got %v", err)
	}
}

func startListener(t *testing.T, path string) (chan notifications.Envelope, context.CancelFunc, chan error) {
	t.Helper()
	iface, err := New(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sink := make(chan notifications.Envelope, 4)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- iface.Listen(ctx, sink) }()

	// Wait for the FIFO to exist before letting the test write to it.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if info, err := os.Stat(path); err == nil && info.Mode()&os.ModeNamedPipe != 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fifo was not created")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return sink, cancel, errCh
}

func sendWithRetry(t *testing.T, iface *PipeInterface, env notifications.Envelope) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := iface.Send(context.Background(), env)
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Send did not succeed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestPipeSendReceive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.pipe")
	sink, cancel, errCh := startListener(t, path)
	defer cancel()

	key := testKey(t)
	sender, err := New(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("New sender: %v", err)
	}
	sendWithRetry(t, sender, testEnvelope(t, key, "deploy-done", "first"))

	select {
	case env := <-sink:
		n, err := notifications.Decode(key, env)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if n.Name != "deploy-done" || n.Message.Text != "first" {
			t.Fatalf("unexpected notification %+v", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no envelope received")
	}

	// Each Send opens and closes the writer; a second send after the first
	// writer closed is exactly the reconnect case the listener must survive.
	sendWithRetry(t, sender, testEnvelope(t, key, "deploy-done", "second"))
	select {
	case env := <-sink:
		n, err := notifications.Decode(key, env)
		if err != nil {
			t.Fatalf("Decode second: %v", err)
		}
		if n.Message.Text != "second" {
			t.Fatalf("unexpected second notification %+v", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not survive writer close/reopen")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("fifo was not removed on shutdown: %v", err)
	}
}

func TestPipeListenerSurvivesMalformedFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.pipe")
	sink, cancel, _ := startListener(t, path)
	defer cancel()

	// Corrupt length prefix, way over the frame cap.
	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open fifo for writing: %v", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], maxFrameBytes+100)
	if _, err := w.Write(header[:]); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	w.Close()

	key := testKey(t)
	sender, err := New(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("New sender: %v", err)
	}
	sendWithRetry(t, sender, testEnvelope(t, key, "still-alive", "yes"))

	select {
	case env := <-sink:
		n, err := notifications.Decode(key, env)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if n.Name != "still-alive" {
			t.Fatalf("unexpected notification %+v", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not recover from malformed frame")
	}
}

func TestSendWithoutReaderFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "lonely.pipe")
	iface, err := New(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := iface.ensureFifo(); err != nil {
		t.Fatalf("ensureFifo: %v", err)
	}
	if err := iface.Send(context.Background(), notifications.Envelope{Version: 1, Nonce: make([]byte, 12)}); err == nil {
		t.Fatal("expected transport error with no reader attached")
	}
}

func TestEnsureFifoAppliesPermissionBits(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "perm.pipe")
	iface, err := New(Config{Path: path, GroupRead: true, GroupWrite: true}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := iface.ensureFifo(); err != nil {
		t.Fatalf("ensureFifo: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o760 {
		t.Fatalf("perm = %o, want 760", perm)
	}
}
