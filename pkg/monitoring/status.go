package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// ConnStatus is the last observed state of an external service
type ConnStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"` // "connected", "error"
	Requests  int    `json:"requests"`
	Failures  int    `json:"failures"`
	Latency   int64  `json:"latency_ms,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// RunStatus summarizes the health of one run
type RunStatus struct {
	Service     string                `json:"service"`
	Version     string                `json:"version"`
	Status      string                `json:"status"` // "healthy", "degraded", "unhealthy"
	StartTime   time.Time             `json:"start_time"`
	Duration    time.Duration         `json:"duration"`
	Connections map[string]ConnStatus `json:"connections"`
	Goroutines  int                   `json:"goroutines"`
	MemoryMB    uint64                `json:"memory_alloc_mb"`
}

// StatusTracker collects per-service request outcomes during a run
type StatusTracker struct {
	service     string
	version     string
	startTime   time.Time
	mu          sync.RWMutex
	connections map[string]*ConnStatus
}

// NewStatusTracker creates a tracker starting now
func NewStatusTracker(service, version string) *StatusTracker {
	return &StatusTracker{
		service:     service,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]*ConnStatus),
	}
}

// Observe records the outcome of one request to an external service
func (t *StatusTracker) Observe(name string, latency time.Duration, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, ok := t.connections[name]
	if !ok {
		conn = &ConnStatus{Name: name}
		t.connections[name] = conn
	}
	conn.Requests++
	conn.Latency = latency.Milliseconds()
	if success {
		conn.Status = "connected"
		return
	}
	conn.Failures++
	conn.Status = "error"
}

// Fail marks a service as failed with the given error
func (t *StatusTracker) Fail(name string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, ok := t.connections[name]
	if !ok {
		conn = &ConnStatus{Name: name}
		t.connections[name] = conn
	}
	conn.Status = "error"
	if err != nil {
		conn.LastError = err.Error()
	}
}

// Status returns the current run status. A run is degraded when some
// services ended in error and unhealthy when more than half did.
func (t *StatusTracker) Status() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	errorCount := 0
	connections := make(map[string]ConnStatus, len(t.connections))
	for k, v := range t.connections {
		connections[k] = *v
		if v.Status == "error" {
			errorCount++
		}
	}

	status := "healthy"
	if errorCount > 0 {
		if errorCount > len(t.connections)/2 {
			status = "unhealthy"
		} else {
			status = "degraded"
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RunStatus{
		Service:     t.service,
		Version:     t.version,
		Status:      status,
		StartTime:   t.startTime,
		Duration:    time.Since(t.startTime),
		Connections: connections,
		Goroutines:  runtime.NumGoroutine(),
		MemoryMB:    m.Alloc / 1024 / 1024,
	}
}
