package monitoring

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RuntimeMonitor periodically samples goroutine count and heap usage
type RuntimeMonitor struct {
	logger         zerolog.Logger
	checkInterval  time.Duration
	alertThreshold int
	alertCooldown  time.Duration

	mu        sync.RWMutex
	baseline  int
	current   int
	peak      int
	heapBytes uint64
	peakHeap  uint64
	lastAlert time.Time
	started   bool

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// RuntimeMonitorConfig controls sampling
type RuntimeMonitorConfig struct {
	CheckInterval time.Duration
	// AlertThreshold is the goroutine count above which a warning is logged
	AlertThreshold int
	AlertCooldown  time.Duration
}

// DefaultRuntimeMonitorConfig returns the standard sampling settings
func DefaultRuntimeMonitorConfig() RuntimeMonitorConfig {
	return RuntimeMonitorConfig{
		CheckInterval:  30 * time.Second,
		AlertThreshold: 1000,
		AlertCooldown:  5 * time.Minute,
	}
}

// NewRuntimeMonitor creates a monitor using the current goroutine count as
// baseline
func NewRuntimeMonitor(cfg RuntimeMonitorConfig, logger zerolog.Logger) *RuntimeMonitor {
	baseline := runtime.NumGoroutine()
	return &RuntimeMonitor{
		logger:         logger.With().Str("component", "runtime_monitor").Logger(),
		checkInterval:  cfg.CheckInterval,
		alertThreshold: cfg.AlertThreshold,
		alertCooldown:  cfg.AlertCooldown,
		baseline:       baseline,
		current:        baseline,
		peak:           baseline,
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start begins sampling in a background goroutine. Later calls are no-ops.
func (m *RuntimeMonitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.run()
	m.logger.Info().
		Int("baseline", m.baseline).
		Dur("interval", m.checkInterval).
		Msg("Started runtime monitoring")
}

// Stop ends sampling and waits for the loop to exit. It is safe to call more
// than once.
func (m *RuntimeMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.mu.RLock()
	started := m.started
	m.mu.RUnlock()
	if started {
		<-m.done
	}
}

func (m *RuntimeMonitor) run() {
	defer close(m.done)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic", r).
				Msg("Runtime monitor panicked - sampling stopped")
		}
	}()

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sample()
		case <-m.stopChan:
			return
		}
	}
}

// Sample takes one measurement and logs it
func (m *RuntimeMonitor) Sample() RuntimeMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	current := runtime.NumGoroutine()

	m.mu.Lock()
	m.current = current
	if current > m.peak {
		m.peak = current
	}
	m.heapBytes = ms.HeapAlloc
	if ms.HeapAlloc > m.peakHeap {
		m.peakHeap = ms.HeapAlloc
	}
	shouldAlert := m.alertThreshold > 0 && current > m.alertThreshold &&
		time.Since(m.lastAlert) > m.alertCooldown
	if shouldAlert {
		m.lastAlert = time.Now()
	}
	metrics := m.metricsLocked()
	m.mu.Unlock()

	m.logger.Debug().
		Int("goroutines", metrics.Goroutines).
		Int("baseline", metrics.Baseline).
		Int("peak", metrics.PeakGoroutines).
		Uint64("heap_bytes", metrics.HeapBytes).
		Uint64("peak_heap_bytes", metrics.PeakHeapBytes).
		Msg("Runtime metrics")

	if shouldAlert {
		m.logger.Warn().
			Int("goroutines", current).
			Int("threshold", m.alertThreshold).
			Msg("High goroutine count detected - possible leak")
	}
	return metrics
}

// Metrics returns the last sampled values
func (m *RuntimeMonitor) Metrics() RuntimeMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metricsLocked()
}

func (m *RuntimeMonitor) metricsLocked() RuntimeMetrics {
	return RuntimeMetrics{
		Goroutines:     m.current,
		Baseline:       m.baseline,
		PeakGoroutines: m.peak,
		Growth:         m.current - m.baseline,
		HeapBytes:      m.heapBytes,
		PeakHeapBytes:  m.peakHeap,
	}
}

// RuntimeMetrics contains the sampled statistics
type RuntimeMetrics struct {
	Goroutines     int    `json:"goroutines"`
	Baseline       int    `json:"baseline"`
	PeakGoroutines int    `json:"peak_goroutines"`
	Growth         int    `json:"growth"`
	HeapBytes      uint64 `json:"heap_bytes"`
	PeakHeapBytes  uint64 `json:"peak_heap_bytes"`
}
