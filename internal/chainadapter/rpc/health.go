// Package rpc wraps one or more EVM JSON-RPC endpoints behind a single
// ethclient-shaped interface, failing over between them using a
// circuit-breaker health tracker.
package rpc

import (
	"sync"
	"time"
)

// EndpointHealth is the health snapshot for one RPC endpoint.
type EndpointHealth struct {
	Endpoint        string
	TotalCalls      int64
	SuccessfulCalls int64
	FailedCalls     int64
	AvgLatencyMs    int64
	LastSuccess     int64
	LastFailure     int64
	CircuitOpen     bool

	consecutiveSuccesses int64
	consecutiveFailures  int64
}

// HealthTracker scores and gates endpoints for failover selection.
type HealthTracker interface {
	RecordSuccess(endpoint string, durationMs int64)
	RecordFailure(endpoint string, err error)
	IsHealthy(endpoint string) bool
	GetBestEndpoint(endpoints []string) string
	Reset(endpoint string)
	GetHealth(endpoint string) *EndpointHealth
}

// SimpleHealthTracker is a circuit breaker over per-endpoint call
// statistics: it opens after failureThreshold consecutive failures and
// closes again after successThreshold consecutive successes, with a
// circuitOpenWindow cooldown, counted from the last failure, before an
// endpoint whose circuit is open is retried.
type SimpleHealthTracker struct {
	mu     sync.RWMutex
	health map[string]*EndpointHealth

	failureThreshold  int
	successThreshold  int
	circuitOpenWindow time.Duration
}

func NewSimpleHealthTracker() *SimpleHealthTracker {
	return &SimpleHealthTracker{
		health:            make(map[string]*EndpointHealth),
		failureThreshold:  3,
		successThreshold:  2,
		circuitOpenWindow: 30 * time.Second,
	}
}

func (t *SimpleHealthTracker) RecordSuccess(endpoint string, durationMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.getOrCreate(endpoint)
	h.TotalCalls++
	h.SuccessfulCalls++
	h.LastSuccess = time.Now().Unix()

	if h.AvgLatencyMs == 0 {
		h.AvgLatencyMs = durationMs
	} else {
		h.AvgLatencyMs = (h.AvgLatencyMs*9 + durationMs) / 10
	}

	h.consecutiveSuccesses++
	h.consecutiveFailures = 0

	if h.CircuitOpen {
		if h.consecutiveSuccesses >= int64(t.successThreshold) {
			h.CircuitOpen = false
		}
	}
}

func (t *SimpleHealthTracker) RecordFailure(endpoint string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.getOrCreate(endpoint)
	h.TotalCalls++
	h.FailedCalls++
	h.LastFailure = time.Now().Unix()

	h.consecutiveFailures++
	h.consecutiveSuccesses = 0
	if h.consecutiveFailures >= int64(t.failureThreshold) {
		h.CircuitOpen = true
	}
}

func (t *SimpleHealthTracker) IsHealthy(endpoint string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, exists := t.health[endpoint]
	if !exists {
		return true
	}
	if h.CircuitOpen {
		if time.Now().Unix()-h.LastFailure < int64(t.circuitOpenWindow.Seconds()) {
			return false
		}
	}
	return true
}

// GetBestEndpoint scores every healthy endpoint by successRate*0.7 +
// latencyFactor*0.3 and returns the highest. Falls back to the first
// endpoint in the list if none are healthy.
func (t *SimpleHealthTracker) GetBestEndpoint(endpoints []string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var best string
	bestScore := -1.0

	for _, endpoint := range endpoints {
		if !t.isHealthyLocked(endpoint) {
			continue
		}

		h, exists := t.health[endpoint]
		if !exists {
			return endpoint
		}

		successRate := float64(h.SuccessfulCalls) / float64(h.TotalCalls)
		latencyFactor := 1.0 / (float64(h.AvgLatencyMs) + 1.0)
		score := successRate*0.7 + latencyFactor*0.3

		if score > bestScore {
			bestScore = score
			best = endpoint
		}
	}

	if best == "" && len(endpoints) > 0 {
		return endpoints[0]
	}
	return best
}

func (t *SimpleHealthTracker) isHealthyLocked(endpoint string) bool {
	h, exists := t.health[endpoint]
	if !exists {
		return true
	}
	if h.CircuitOpen {
		return time.Now().Unix()-h.LastFailure >= int64(t.circuitOpenWindow.Seconds())
	}
	return true
}

func (t *SimpleHealthTracker) Reset(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.health, endpoint)
}

func (t *SimpleHealthTracker) GetHealth(endpoint string) *EndpointHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, exists := t.health[endpoint]
	if !exists {
		return &EndpointHealth{Endpoint: endpoint}
	}
	cp := *h
	return &cp
}

func (t *SimpleHealthTracker) getOrCreate(endpoint string) *EndpointHealth {
	h, exists := t.health[endpoint]
	if !exists {
		h = &EndpointHealth{Endpoint: endpoint}
		t.health[endpoint] = h
	}
	return h
}
