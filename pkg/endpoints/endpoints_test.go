package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"passiton/pkg/config"
	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

type nullEndpoint struct{ name string }

func (n *nullEndpoint) Name() string                                              { return n.name }
func (n *nullEndpoint) Deliver(context.Context, notifications.Notification) error { return nil }
func (n *nullEndpoint) Close(context.Context) error                               { return nil }

func endpointRecord(t *testing.T, raw string) config.EndpointRecord {
	t.Helper()
	var rec config.EndpointRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	return rec
}

func TestRegistryBuildBindsSubscriptions(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register("null", func(rec config.EndpointRecord, log logx.Logger) (Endpoint, error) {
		return &nullEndpoint{name: "null"}, nil
	})

	rec := endpointRecord(t, `{"type":"null","notifications":["backups-done","alerts"]}`)
	b, err := reg.Build(rec, logx.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if b.Endpoint.Name() != "null" {
		t.Fatalf("endpoint name = %q", b.Endpoint.Name())
	}
	if len(b.Notifications) != 2 || b.Notifications[0] != "backups-done" || b.Notifications[1] != "alerts" {
		t.Fatalf("notifications = %v", b.Notifications)
	}
}

func TestRegistryBuildUnknownType(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register("null", func(rec config.EndpointRecord, log logx.Logger) (Endpoint, error) {
		return &nullEndpoint{name: "null"}, nil
	})

	rec := endpointRecord(t, `{"type":"matrix","notifications":["a"]}`)
	_, err := reg.Build(rec, logx.Nop())
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if !strings.Contains(err.Error(), `"matrix"`) || !strings.Contains(err.Error(), "null") {
		t.Fatalf("error should name the unknown type and registered types: %v", err)
	}
}

func TestRegistryBuildAllStopsOnFirstError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	reg := NewRegistry()
	reg.Register("ok", func(rec config.EndpointRecord, log logx.Logger) (Endpoint, error) {
		return &nullEndpoint{name: "ok"}, nil
	})
	reg.Register("bad", func(rec config.EndpointRecord, log logx.Logger) (Endpoint, error) {
		return nil, boom
	})

	recs := []config.EndpointRecord{
		endpointRecord(t, `{"type":"ok","notifications":["a"]}`),
		endpointRecord(t, `{"type":"bad","notifications":["a"]}`),
	}
	_, err := reg.BuildAll(recs, logx.Nop())
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !strings.Contains(err.Error(), "endpoint 1") {
		t.Fatalf("error should name the failing record index: %v", err)
	}
}
