package metrics

import (
	"sort"
	"sync"
	"time"
)

// Readiness states
const (
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// Component is the last reported state of one dependency
type Component struct {
	Name    string    `json:"name"`
	Healthy bool      `json:"healthy"`
	Message string    `json:"message,omitempty"`
	Updated time.Time `json:"updated"`
}

// Readiness summarizes the critical components
type Readiness struct {
	Status     string            `json:"status"`
	Message    string            `json:"message,omitempty"`
	Components map[string]string `json:"components,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     time.Duration     `json:"uptime"`
}

type healthRegistry struct {
	mu         sync.RWMutex
	components map[string]Component
	critical   []string
	started    time.Time
	version    string
}

var registry = newHealthRegistry()

func newHealthRegistry() *healthRegistry {
	return &healthRegistry{
		components: make(map[string]Component),
		started:    time.Now(),
	}
}

// SetVersion sets the version reported with readiness
func SetVersion(version string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.version = version
}

// SetCriticalComponents replaces the components that must be healthy before
// the process reports ready
func SetCriticalComponents(names ...string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.critical = append([]string(nil), names...)
}

// UpdateComponent records the outcome of a component check
func UpdateComponent(name string, healthy bool, message string) {
	registry.mu.Lock()
	registry.components[name] = Component{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
	registry.mu.Unlock()

	v := 0.0
	if healthy {
		v = 1
	}
	ComponentHealthy.WithLabelValues(name).Set(v)
}

// Components returns every reported component ordered by name
func Components() []Component {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	out := make([]Component, 0, len(registry.components))
	for _, c := range registry.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetReadiness reports ready only when every critical component has reported
// and its last check passed
func GetReadiness() Readiness {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	r := Readiness{
		Status:     StatusReady,
		Components: make(map[string]string, len(registry.critical)),
		Version:    registry.version,
		Uptime:     time.Since(registry.started),
	}

	for _, name := range registry.critical {
		c, ok := registry.components[name]
		switch {
		case !ok:
			r.Status = StatusNotReady
			r.Message = "waiting for " + name
			r.Components[name] = "not reported"
		case !c.Healthy:
			r.Status = StatusNotReady
			r.Message = name + " unhealthy"
			r.Components[name] = "unhealthy: " + c.Message
		default:
			r.Components[name] = "ok"
		}
	}
	return r
}
