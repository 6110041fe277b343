package mw

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	logfilter "github.com/jmylchreest/slog-logfilter"
)

// LogFiltersConfig holds configuration for the log filters loader.
type LogFiltersConfig struct {
	Path         string        // Local JSON file with filter definitions
	CacheTTL     time.Duration // How often to check for updates (default: 5 min)
	ErrorBackoff time.Duration // How long to wait after an error (default: 1 min)
	Logger       *slog.Logger
}

// LogFiltersLoader watches a local JSON file and applies its filters to
// slog-logfilter. The file's modtime is cached so unchanged files are
// not re-parsed, and existing filters are kept when a reload fails.
type LogFiltersLoader struct {
	path string

	mu           sync.RWMutex
	modTime      time.Time
	lastFetch    time.Time
	lastCheck    time.Time
	lastError    time.Time
	initialized  bool
	filterCount  int
	cacheTTL     time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewLogFiltersLoader creates a new log filters loader.
func NewLogFiltersLoader(cfg LogFiltersConfig) *LogFiltersLoader {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = 1 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &LogFiltersLoader{
		path:         cfg.Path,
		cacheTTL:     cfg.CacheTTL,
		errorBackoff: cfg.ErrorBackoff,
		logger:       cfg.Logger,
		stopCh:       make(chan struct{}),
	}
}

// Start loads the filters and begins periodic refresh. It is a no-op
// when no filter file is configured.
func (l *LogFiltersLoader) Start(ctx context.Context) {
	if l.path == "" {
		l.logger.Info("log filters loader disabled (no filter file configured)")
		return
	}

	l.refresh()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cacheTTL)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.refresh()
			case <-l.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	l.logger.Info("log filters loader started",
		"path", l.path,
		"cache_ttl", l.cacheTTL.String(),
	)
}

// Stop stops the periodic refresh.
func (l *LogFiltersLoader) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}

// refresh re-reads the filter file if it changed since the last load.
func (l *LogFiltersLoader) refresh() {
	l.mu.Lock()
	if !l.lastError.IsZero() && time.Since(l.lastError) < l.errorBackoff {
		l.mu.Unlock()
		return
	}
	currentModTime := l.modTime
	l.mu.Unlock()

	info, err := os.Stat(l.path)
	if err != nil {
		l.mu.Lock()
		l.initialized = true
		l.lastCheck = time.Now()
		l.lastError = time.Now()
		l.mu.Unlock()
		if os.IsNotExist(err) {
			l.logger.Info("log filters file not found (using default filters)", "path", l.path)
		} else {
			l.logger.Error("failed to stat log filters file", "path", l.path, "error", err)
		}
		return
	}

	if !currentModTime.IsZero() && !info.ModTime().After(currentModTime) {
		l.mu.Lock()
		l.lastCheck = time.Now()
		count := l.filterCount
		l.mu.Unlock()
		l.logger.Debug("log filters unchanged (modtime match)",
			"mod_time", info.ModTime(),
			"filter_count", count,
		)
		return
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		l.mu.Lock()
		l.lastError = time.Now()
		l.initialized = true
		l.mu.Unlock()
		l.logger.Error("failed to read log filters file", "path", l.path, "error", err)
		return
	}

	var filters []logfilter.LogFilter
	if err := json.Unmarshal(data, &filters); err != nil {
		l.mu.Lock()
		l.lastError = time.Now()
		l.initialized = true
		l.mu.Unlock()
		l.logger.Error("failed to parse log filters JSON", "path", l.path, "error", err)
		return
	}

	logfilter.SetFilters(filters)

	now := time.Now()
	l.mu.Lock()
	l.initialized = true
	l.lastFetch = now
	l.lastCheck = now
	l.lastError = time.Time{}
	l.modTime = info.ModTime()
	l.filterCount = len(filters)
	l.mu.Unlock()

	activeCount := 0
	for _, f := range filters {
		if f.IsActive() {
			activeCount++
		}
	}

	l.logger.Info("log filters loaded",
		"path", l.path,
		"mod_time", info.ModTime(),
		"total_filters", len(filters),
		"active_filters", activeCount,
	)
}

// LogFiltersStats contains statistics about the log filters loader.
type LogFiltersStats struct {
	Initialized bool      `json:"initialized"`
	FilterCount int       `json:"filter_count"`
	ModTime     time.Time `json:"mod_time"`
	LastFetch   time.Time `json:"last_fetch"`
	LastCheck   time.Time `json:"last_check"`
	CacheTTL    string    `json:"cache_ttl"`
}

// Stats returns current loader statistics.
func (l *LogFiltersLoader) Stats() LogFiltersStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LogFiltersStats{
		Initialized: l.initialized,
		FilterCount: l.filterCount,
		ModTime:     l.modTime,
		LastFetch:   l.lastFetch,
		LastCheck:   l.lastCheck,
		CacheTTL:    l.cacheTTL.String(),
	}
}
