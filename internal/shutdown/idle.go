// Package shutdown lets a long-forgotten `cellarlog serve` wind itself
// down. The server runs on the taster's own machine; when no requests
// have arrived for a configured stretch and the conversion worker is
// quiet, it signals a graceful exit instead of idling forever.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BackgroundWorkChecker reports whether background work is in
// progress. The conversion worker plugs in here so a claimed inbox
// item is never abandoned mid-conversion.
type BackgroundWorkChecker func() bool

// IdleMonitor watches request activity and closes its shutdown channel
// once the server has been quiet for the configured duration.
type IdleMonitor struct {
	timeout             time.Duration
	logger              *slog.Logger
	activeRequests      int64
	lastActivity        time.Time
	mu                  sync.RWMutex
	shutdownChan        chan struct{}
	stopChan            chan struct{}
	excludePaths        []string
	backgroundWorkCheck BackgroundWorkChecker
}

// IdleMonitorConfig holds configuration for the idle monitor.
type IdleMonitorConfig struct {
	Timeout time.Duration
	Logger  *slog.Logger
	// ExcludePaths lists URL prefixes that do not count as activity,
	// so /healthz polling never keeps the server alive
	ExcludePaths        []string
	BackgroundWorkCheck BackgroundWorkChecker
}

// NewIdleMonitor creates an idle monitor. A zero timeout disables it.
func NewIdleMonitor(cfg IdleMonitorConfig) *IdleMonitor {
	return &IdleMonitor{
		timeout:             cfg.Timeout,
		logger:              cfg.Logger,
		lastActivity:        time.Now(),
		shutdownChan:        make(chan struct{}),
		stopChan:            make(chan struct{}),
		excludePaths:        cfg.ExcludePaths,
		backgroundWorkCheck: cfg.BackgroundWorkCheck,
	}
}

// Start begins watching for idle periods.
func (m *IdleMonitor) Start() {
	if m.timeout <= 0 {
		m.logger.Debug("idle shutdown disabled")
		return
	}

	m.logger.Info("idle shutdown armed", "timeout", m.timeout, "exclude_paths", m.excludePaths)

	go m.run()
}

// Stop halts the monitor without signaling shutdown.
func (m *IdleMonitor) Stop() {
	if m.timeout <= 0 {
		return
	}
	close(m.stopChan)
}

// ShutdownChan returns a channel closed when the idle timeout fires.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.shutdownChan
}

// Middleware counts in-flight requests and stamps the last activity
// time. Excluded path prefixes pass through untracked.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if m.timeout <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracked := true
		for _, prefix := range m.excludePaths {
			if strings.HasPrefix(r.URL.Path, prefix) {
				tracked = false
				break
			}
		}

		if tracked {
			m.requestStart()
			defer m.requestEnd()
		}

		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) requestStart() {
	atomic.AddInt64(&m.activeRequests, 1)
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

func (m *IdleMonitor) requestEnd() {
	atomic.AddInt64(&m.activeRequests, -1)
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

func (m *IdleMonitor) run() {
	// Poll well under the timeout so the signal is not late, clamped
	// between 5s and 30s
	checkInterval := m.timeout / 6
	if checkInterval < 5*time.Second {
		checkInterval = 5 * time.Second
	}
	if checkInterval > 30*time.Second {
		checkInterval = 30 * time.Second
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			active := atomic.LoadInt64(&m.activeRequests)
			m.mu.RLock()
			idleTime := time.Since(m.lastActivity)
			m.mu.RUnlock()

			backgroundBusy := false
			if m.backgroundWorkCheck != nil {
				backgroundBusy = m.backgroundWorkCheck()
			}

			// Busy background work resets the clock, so the worker
			// gets a full quiet period after its last conversion
			if active > 0 || backgroundBusy {
				m.mu.Lock()
				m.lastActivity = time.Now()
				m.mu.Unlock()
				idleTime = 0
			}

			if active == 0 && !backgroundBusy && idleTime >= m.timeout {
				m.logger.Info("idle timeout reached, shutting down",
					"idle_time", idleTime,
					"timeout", m.timeout,
				)
				close(m.shutdownChan)
				return
			}

			m.logger.Debug("idle check",
				"idle_time", idleTime,
				"active_requests", active,
				"background_busy", backgroundBusy,
			)
		}
	}
}
