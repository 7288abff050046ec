// Package statusserver exposes a read-only HTTP view of the last
// Coordinator Result (SPEC_FULL's optional status endpoint), grounded
// on vmware-tanzu-sonobuoy's use of gorilla/mux for its own read-only
// status/results API.
package statusserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/agentops/sge/internal/coordinator"
)

// Server serves the most recent Coordinator Result as JSON. It never
// accepts a request that mutates state; all writes happen through
// Record, called directly by the process that runs tasks.
type Server struct {
	mu     sync.RWMutex
	latest *coordinator.Result
	router *mux.Router
}

// New constructs a Server and wires its routes.
func New() *Server {
	s := &Server{router: mux.NewRouter()}
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Record stores result as the latest known Coordinator Result.
func (s *Server) Record(result coordinator.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &result
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if latest == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_ = json.NewEncoder(w).Encode(latest)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
