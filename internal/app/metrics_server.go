package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dshills/luarun/internal/logging"
)

// MetricsServer serves the Prometheus collector on /metrics.
type MetricsServer struct {
	srv  *http.Server
	ln   net.Listener
	done chan error
}

// StartMetrics listens on metrics.addr and serves in the background. It
// returns nil and no error when no address is configured.
func (app *Application) StartMetrics() (*MetricsServer, error) {
	addr := app.cfg.Metrics.Addr
	if addr == "" {
		return nil, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &InitError{Component: "metrics listener", Err: err}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())

	s := &MetricsServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:   ln,
		done: make(chan error, 1),
	}

	log := logging.Module(app.logger, "metrics")
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			log.Error("metrics server stopped", "error", err)
		}
		s.done <- err
	}()

	log.Info("serving metrics", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the address the server is bound to.
func (s *MetricsServer) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server and waits for in-flight scrapes.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.done
}
