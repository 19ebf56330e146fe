package fileep

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

func notification(name, text string) notifications.Notification {
	return notifications.NewMessage(text).Ready(name).Notification()
}

func TestDeliverAppendsLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.log")
	ep, err := New(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ep.Close(context.Background())

	ctx := context.Background()
	if err := ep.Deliver(ctx, notification("n", "first")); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if err := ep.Deliver(ctx, notification("n", "second")); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "first\nsecond\n" {
		t.Fatalf("file content = %q", b)
	}
}

func TestConcurrentDeliveriesDoNotInterleave(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.log")
	ep, err := New(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ep.Close(context.Background())

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ep.Deliver(context.Background(), notification("n", strings.Repeat("x", 100)))
		}()
	}
	wg.Wait()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != writers {
		t.Fatalf("got %d lines, want %d", len(lines), writers)
	}
	for _, line := range lines {
		if line != strings.Repeat("x", 100) {
			t.Fatalf("interleaved line %q", line)
		}
	}
}

func TestDeliverAfterClose(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.log")
	ep, err := New(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ep.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ep.Deliver(context.Background(), notification("n", "late")); err == nil {
		t.Fatal("expected error delivering after Close")
	}
	// Close is idempotent.
	if err := ep.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNewRejectsEmptyPath(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty path")
	}
}
