// Package health exposes the gateway's HTTP health endpoint.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

// Checker reports whether a supervised task is currently alive.
type Checker func() bool

// Server serves GET /health, aggregating a set of named checks.
type Server struct {
	log    *logging.Logger
	server *http.Server

	mu     sync.RWMutex
	checks map[string]Checker
}

// New builds a Server bound to addr; checks are added with Register before
// Run is called.
func New(addr string, log *logging.Logger) *Server {
	s := &Server{log: log.Component("health"), checks: make(map[string]Checker)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	s.server = &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
	return s
}

// Register adds a named liveness check; all registered checks must return
// true for /health to report healthy.
func (s *Server) Register(name string, check Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Run serves until ctx is cancelled — the http_health task.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, check := range s.checks {
		if !check() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "%s unhealthy\n", name)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Ok")
}
