package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/remindsync/pkg/fanout"
	"github.com/cuemby/remindsync/pkg/metrics"
	"github.com/cuemby/remindsync/pkg/storage"
)

// Version is reported by /health. The binaries set it at startup.
var Version = "dev"

// checkTimeout bounds each readiness check
const checkTimeout = 2 * time.Second

// Check is one readiness probe
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// StoreCheck probes the reminder store with an active-set read
func StoreCheck(store storage.Store) Check {
	return Check{
		Name: "store",
		Fn: func(ctx context.Context) error {
			_, err := store.ListActive(ctx)
			return err
		},
	}
}

// RegistryCheck probes the device registry
func RegistryCheck(registry fanout.Registry) Check {
	return Check{
		Name: "registry",
		Fn: func(ctx context.Context) error {
			_, err := registry.List(ctx, "healthcheck")
			return err
		},
	}
}

// HealthServer provides HTTP health check endpoints
type HealthServer struct {
	checks []Check
	mux    *http.ServeMux
	server *http.Server
}

// NewHealthServer creates a new health check HTTP server. The named checks
// become the critical components for readiness.
func NewHealthServer(checks ...Check) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		checks: checks,
		mux:    mux,
		server: newHTTPServer(mux),
	}

	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name)
	}
	metrics.SetCriticalComponents(names...)

	// Register endpoints
	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the health check HTTP server and blocks until Shutdown. It
// returns at once if Shutdown already ran.
func (hs *HealthServer) Start(addr string) error {
	return serve(hs.server, addr)
}

// Shutdown stops the server, including one that has not started yet
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	return hs.server.Shutdown(ctx)
}

func newHTTPServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// serve listens on addr and serves until srv is shut down
func serve(srv *http.Server, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint
// This is a simple liveness check - returns 200 if the process is alive
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler implements the /ready endpoint. Every check runs on each
// request and its result is recorded in the component health registry.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	for _, c := range hs.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Fn(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "error: " + err.Error()
			metrics.UpdateComponent(c.Name, false, err.Error())
		} else {
			checks[c.Name] = "ok"
			metrics.UpdateComponent(c.Name, true, "")
		}
	}

	readiness := metrics.GetReadiness()

	status := "ready"
	statusCode := http.StatusOK
	if readiness.Status != metrics.StatusReady {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   readiness.Message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
