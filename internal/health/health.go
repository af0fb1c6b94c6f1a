// Package health runs dependency probes for the /health endpoint: database
// connectivity and classifier sanity. Probes report an error when the
// dependency is down; the registry turns that into a per-dependency report.
package health

import (
	"context"
	"sync"
	"time"
)

// Probe checks one dependency. A nil return means healthy.
type Probe func(ctx context.Context) error

// Result is the outcome of a single probe run.
type Result struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Report aggregates one run across all registered probes.
type Report struct {
	Healthy bool
	Results []Result
}

// Registry holds named probes and runs them under a shared timeout.
type Registry struct {
	mu      sync.RWMutex
	timeout time.Duration
	probes  []namedProbe
}

type namedProbe struct {
	name  string
	probe Probe
}

// NewRegistry creates a registry. Every Run is bounded by timeout so a
// hung database connection cannot stall the health endpoint.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{timeout: timeout}
}

// Register adds a named probe. Probes run in registration order.
func (r *Registry) Register(name string, probe Probe) {
	r.mu.Lock()
	r.probes = append(r.probes, namedProbe{name: name, probe: probe})
	r.mu.Unlock()
}

// Run executes every probe and reports per-dependency results. The report
// is healthy only when every probe returned nil.
func (r *Registry) Run(ctx context.Context) Report {
	r.mu.RLock()
	probes := make([]namedProbe, len(r.probes))
	copy(probes, r.probes)
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	report := Report{Healthy: true}
	for _, np := range probes {
		res := Result{Name: np.name, Healthy: true}
		if err := np.probe(ctx); err != nil {
			res.Healthy = false
			res.Detail = err.Error()
			report.Healthy = false
		}
		report.Results = append(report.Results, res)
	}
	return report
}
