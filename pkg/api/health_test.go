package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/remindsync/pkg/shared"
	"github.com/cuemby/remindsync/pkg/storage"
)

func okCheck(name string) Check {
	return Check{Name: name, Fn: func(ctx context.Context) error { return nil }}
}

func failingCheck(name string) Check {
	return Check{Name: name, Fn: func(ctx context.Context) error { return errors.New("unreachable") }}
}

// TestHealthHandler tests the /health endpoint
func TestHealthHandler(t *testing.T) {
	hs := NewHealthServer()

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{
			name:           "GET request succeeds",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "POST request fails",
			method:         http.MethodPost,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "DELETE request fails",
			method:         http.MethodDelete,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			hs.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				err := json.NewDecoder(w.Body).Decode(&response)
				assert.NoError(t, err)
				assert.Equal(t, "healthy", response.Status)
				assert.Equal(t, Version, response.Version)
				assert.NotZero(t, response.Timestamp)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name           string
		checks         []Check
		expectedStatus int
		expectedState  string
	}{
		{
			name:           "no checks",
			expectedStatus: http.StatusOK,
			expectedState:  "ready",
		},
		{
			name:           "all checks pass",
			checks:         []Check{okCheck("store"), okCheck("registry")},
			expectedStatus: http.StatusOK,
			expectedState:  "ready",
		},
		{
			name:           "one check fails",
			checks:         []Check{okCheck("store"), failingCheck("registry")},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "not ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthServer(tt.checks...)

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			hs.readyHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response ReadyResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedState, response.Status)
			assert.Len(t, response.Checks, len(tt.checks))
			for _, c := range tt.checks {
				assert.Contains(t, response.Checks, c.Name)
			}
		})
	}
}

func TestReadyHandlerRecovers(t *testing.T) {
	healthy := false
	check := Check{Name: "store", Fn: func(ctx context.Context) error {
		if !healthy {
			return errors.New("locked")
		}
		return nil
	}}
	hs := NewHealthServer(check)

	w := httptest.NewRecorder()
	hs.readyHandler(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	healthy = true
	w = httptest.NewRecorder()
	hs.readyHandler(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStoreCheck(t *testing.T) {
	g, err := shared.Open(t.TempDir())
	require.NoError(t, err)
	store := storage.NewLocalStore(g)
	defer store.Close()

	check := StoreCheck(store)
	assert.Equal(t, "store", check.Name)
	assert.NoError(t, check.Fn(context.Background()))
}

// TestNewHealthServer tests health server creation
func TestNewHealthServer(t *testing.T) {
	hs := NewHealthServer(okCheck("store"))

	assert.NotNil(t, hs)
	assert.NotNil(t, hs.mux)

	// Verify routes are registered by testing requests
	tests := []struct {
		path           string
		expectedStatus int
	}{
		{path: "/health", expectedStatus: http.StatusOK},
		{path: "/ready", expectedStatus: http.StatusOK},
		{path: "/metrics", expectedStatus: http.StatusOK},
		{path: "/nonexistent", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			hs.GetHandler().ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "Path: %s", tt.path)
		})
	}
}

// TestHealthServerConcurrency tests concurrent requests to health endpoints
func TestHealthServerConcurrency(t *testing.T) {
	hs := NewHealthServer(okCheck("store"))

	done := make(chan bool, 20)

	for i := 0; i < 10; i++ {
		go func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			hs.healthHandler(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		go func() {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			hs.readyHandler(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		<-done
	}
}

func BenchmarkHealthHandler(b *testing.B) {
	hs := NewHealthServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		hs.healthHandler(w, req)
	}
}

func TestHealthServerShutdownBeforeStart(t *testing.T) {
	hs := NewHealthServer()
	require.NoError(t, hs.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- hs.Start("127.0.0.1:0") }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start kept serving after Shutdown")
	}
}

func TestHealthServerStartShutdown(t *testing.T) {
	hs := NewHealthServer()

	done := make(chan error, 1)
	go func() { done <- hs.Start("127.0.0.1:0") }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, hs.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
