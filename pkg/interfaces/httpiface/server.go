package httpiface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

// Listen binds the configured host:port and forwards every decodable POST
// body to sink. Undecodable bodies get a 400 and are dropped; the listener
// keeps serving. Returns once ctx is cancelled and the socket is released.
func (h *HTTPInterface) Listen(ctx context.Context, sink chan<- notifications.Envelope) error {
	if h.useTLS && (h.cfg.TLSCert == "" || h.cfg.TLSKey == "") {
		return errors.New("http listen: tls enabled but tls_cert/tls_key not configured")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(versionPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(Version))
	})
	mux.HandleFunc(notificationsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var env notifications.Envelope
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&env); err != nil {
			h.log.Warn("rejecting undecodable notification body", logx.Err(err), logx.String("remote", r.RemoteAddr))
			http.Error(w, "bad envelope", http.StatusBadRequest)
			return
		}
		// Accepted means queued for decode, not delivered.
		select {
		case sink <- env:
			w.WriteHeader(http.StatusOK)
		case <-ctx.Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		}
	})

	addr := h.bindAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout,
		IdleTimeout:       time.Minute,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			// Best-effort: log and let exit proceed.
			h.log.Warn("http listener shutdown incomplete", logx.Err(err))
			_ = srv.Close()
		}
	}()

	h.log.Info("http listener started", logx.String("addr", addr), logx.Bool("tls", h.useTLS))
	if h.useTLS {
		err = srv.ServeTLS(ln, h.cfg.TLSCert, h.cfg.TLSKey)
	} else {
		err = srv.Serve(ln)
	}
	<-stopped
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return fmt.Errorf("http listen: %w", err)
}
