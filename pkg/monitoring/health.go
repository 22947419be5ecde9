package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/NERVsystems/greenroute/pkg/version"
)

// Connection states reported to the HealthChecker.
const (
	StatusConnected    = "connected"
	StatusDegraded     = "degraded"
	StatusError        = "error"
	StatusDisconnected = "disconnected"
)

// Overall service states.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// ConnStatus is the last observed state of a dependency.
type ConnStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Latency   int64     `json:"latency_ms"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// ServiceHealth is the body of the /health endpoint.
type ServiceHealth struct {
	Service     string                `json:"service"`
	Version     string                `json:"version"`
	Status      string                `json:"status"`
	Uptime      time.Duration         `json:"uptime"`
	StartTime   time.Time             `json:"start_time"`
	Connections map[string]ConnStatus `json:"connections"`
	Metrics     map[string]any        `json:"metrics"`
}

// HealthChecker manages service health monitoring
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time
	mu          sync.RWMutex
	connections map[string]*ConnStatus
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())

	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]*ConnStatus),
		ctx:         ctx,
		cancel:      cancel,
	}

	hc.updateSystemMetrics()
	go hc.collectSystemMetrics()

	return hc
}

// UpdateConnection updates the status of a connection
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	h.connections[name] = &ConnStatus{
		Name:      name,
		Status:    status,
		Latency:   latencyMs,
		LastError: errStr,
		CheckedAt: time.Now(),
	}
}

// RemoveConnection removes a connection from monitoring
func (h *HealthChecker) RemoveConnection(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, name)
}

// GetHealth returns the current health status
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthHealthy
	degradedCount := 0
	errorCount := 0

	for _, conn := range h.connections {
		switch conn.Status {
		case StatusError, StatusDisconnected:
			errorCount++
		case StatusDegraded:
			degradedCount++
		}
	}

	// More than half of the dependencies failing makes the service unhealthy.
	if errorCount > 0 {
		if errorCount > len(h.connections)/2 {
			status = HealthUnhealthy
		} else {
			status = HealthDegraded
		}
	} else if degradedCount > 0 {
		status = HealthDegraded
	}

	connections := make(map[string]ConnStatus, len(h.connections))
	for k, v := range h.connections {
		connections[k] = *v
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return ServiceHealth{
		Service:     h.serviceName,
		Version:     h.version,
		Status:      status,
		Uptime:      time.Since(h.startTime),
		StartTime:   h.startTime,
		Connections: connections,
		Metrics: map[string]any{
			"goroutines":           runtime.NumGoroutine(),
			"memory_alloc_mb":      m.Alloc / 1024 / 1024,
			"memory_sys_mb":        m.Sys / 1024 / 1024,
			"gc_runs":              m.NumGC,
			"cpu_count":            runtime.NumCPU(),
			"version_info":         version.Info(),
			"total_connections":    len(h.connections),
			"error_connections":    errorCount,
			"degraded_connections": degradedCount,
		},
	}
}

// HTTPStatus maps a health state to a response status. Degraded still serves.
func HTTPStatus(status string) int {
	switch status {
	case HealthHealthy, HealthDegraded:
		return http.StatusOK
	case HealthUnhealthy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// HealthHandler returns an HTTP handler for health checks
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		writeJSON(w, HTTPStatus(health.Status), health)
	}
}

// Readiness reports whether the service should receive traffic.
func (h *HealthChecker) Readiness() (bool, string) {
	status := h.GetHealth().Status
	return status != HealthUnhealthy, status
}

// ReadinessHandler returns a simple readiness check
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready, status := h.Readiness()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"ready":  ready,
			"status": status,
		})
	}
}

// Uptime returns the time since the checker was created.
func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}

// LivenessHandler returns a simple liveness check
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"alive":  true,
			"uptime": h.Uptime().String(),
		})
	}
}

func (h *HealthChecker) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))

	info := version.Info()
	SystemInfo.WithLabelValues(
		info["version"],
		info["go_version"],
		info["commit"],
		info["build_date"],
	).Set(1)
}

// Shutdown stops background metric collection.
func (h *HealthChecker) Shutdown() {
	h.cancel()
}

// CheckFunc probes a dependency.
type CheckFunc func(ctx context.Context) error

// ConnectionMonitor periodically probes a dependency and reports to a HealthChecker.
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	checkFunc     CheckFunc
	interval      time.Duration
	timeout       time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewConnectionMonitor creates a new connection monitor
func NewConnectionMonitor(name string, hc *HealthChecker, checkFunc CheckFunc, interval time.Duration) *ConnectionMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	timeout := interval / 2
	if timeout <= 0 || timeout > 10*time.Second {
		timeout = 10 * time.Second
	}

	return &ConnectionMonitor{
		name:          name,
		healthChecker: hc,
		checkFunc:     checkFunc,
		interval:      interval,
		timeout:       timeout,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Start begins monitoring the connection
func (cm *ConnectionMonitor) Start() {
	go cm.monitor()
}

// Stop stops monitoring and waits for an in-flight check to finish.
func (cm *ConnectionMonitor) Stop() {
	cm.cancel()
	select {
	case <-cm.done:
	case <-time.After(cm.timeout):
	}
}

func (cm *ConnectionMonitor) monitor() {
	defer close(cm.done)

	cm.performCheck()

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

func (cm *ConnectionMonitor) performCheck() {
	ctx, cancel := context.WithTimeout(cm.ctx, cm.timeout)
	defer cancel()

	start := time.Now()
	err := cm.checkFunc(ctx)
	latency := time.Since(start).Milliseconds()

	if cm.ctx.Err() != nil {
		return
	}

	status := StatusConnected
	if err != nil {
		status = StatusError
		RecordError("health", cm.name)
	}

	cm.healthChecker.UpdateConnection(cm.name, status, latency, err)
}
