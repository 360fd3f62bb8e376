package health

import (
	"context"
	"sync"
	"time"
)

type CheckFunc func(ctx context.Context) error

type Result struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type probe struct {
	name  string
	check CheckFunc
}

// ProbeRunner runs registered dependency checks for the readiness
// endpoint. Results are cached for cacheTTL so probe storms do not
// hammer the dependencies themselves.
type ProbeRunner struct {
	timeout  time.Duration
	cacheTTL time.Duration

	mu          sync.Mutex
	probes      []probe
	cachedAt    time.Time
	cachedReady bool
	cached      []Result
}

func NewProbeRunner(timeout, cacheTTL time.Duration) *ProbeRunner {
	return &ProbeRunner{timeout: timeout, cacheTTL: cacheTTL}
}

func (p *ProbeRunner) Register(name string, check CheckFunc) {
	p.mu.Lock()
	p.probes = append(p.probes, probe{name: name, check: check})
	p.mu.Unlock()
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []Result) {
	p.mu.Lock()
	if !p.cachedAt.IsZero() && time.Since(p.cachedAt) < p.cacheTTL {
		ready, results := p.cachedReady, p.cached
		p.mu.Unlock()
		return ready, results
	}
	probes := make([]probe, len(p.probes))
	copy(probes, p.probes)
	p.mu.Unlock()

	ready := true
	results := make([]Result, 0, len(probes))
	for _, pr := range probes {
		checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := pr.check(checkCtx)
		cancel()
		if err != nil {
			ready = false
			results = append(results, Result{Name: pr.name, Status: "down", Error: err.Error()})
			continue
		}
		results = append(results, Result{Name: pr.name, Status: "up"})
	}

	p.mu.Lock()
	p.cachedAt = time.Now()
	p.cachedReady = ready
	p.cached = results
	p.mu.Unlock()
	return ready, results
}
