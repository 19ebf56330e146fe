package httpiface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"passiton/pkg/notifications"
)

// Send POSTs one envelope. Non-2xx responses are transport errors; the
// caller's retry loop decides what to do with them.
func (h *HTTPInterface) Send(ctx context.Context, env notifications.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("http send: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+notificationsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http send: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http send: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("http send: server returned %s", resp.Status)
	}
	return nil
}

// Probe fetches the server's version identifier. Used for liveness and
// compatibility checks; the response is not a notification.
func (h *HTTPInterface) Probe(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+versionPath, nil)
	if err != nil {
		return "", fmt.Errorf("http probe: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http probe: server returned %s", resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("http probe: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
