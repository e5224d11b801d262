package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/study-room-reservation/internal/reservation"
)

// Sweeper runs one pass of the violation monitor.
type Sweeper interface {
	Sweep(ctx context.Context) *reservation.SweepReport
}

// SweepWorkerConfig contains configuration for the sweep worker
type SweepWorkerConfig struct {
	// Interval is the time between sweeps
	Interval time.Duration
	// Timeout bounds a single sweep; zero means Interval
	Timeout time.Duration
}

// DefaultSweepWorkerConfig returns default configuration
func DefaultSweepWorkerConfig() *SweepWorkerConfig {
	return &SweepWorkerConfig{
		Interval: time.Minute,
	}
}

// SweepWorker periodically moves no-show, overstaying and absent
// reservations to VIOLATED.
type SweepWorker struct {
	sweeper Sweeper
	config  *SweepWorkerConfig
	log     *zap.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	totalRuns      int64
	totalViolated  int64
	totalFailures  int64
	lastSweepTime  time.Time
	lastViolated   int
	lastSweepError string
}

// SweepWorkerStats is a snapshot of the worker counters.
type SweepWorkerStats struct {
	IsRunning      bool      `json:"is_running"`
	TotalRuns      int64     `json:"total_runs"`
	TotalViolated  int64     `json:"total_violated"`
	TotalFailures  int64     `json:"total_failures"`
	LastSweepTime  time.Time `json:"last_sweep_time"`
	LastViolated   int       `json:"last_violated"`
	LastSweepError string    `json:"last_sweep_error,omitempty"`
}

// NewSweepWorker creates a new sweep worker
func NewSweepWorker(sweeper Sweeper, config *SweepWorkerConfig, log *zap.Logger) *SweepWorker {
	if config == nil {
		config = DefaultSweepWorkerConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SweepWorker{
		sweeper: sweeper,
		config:  config,
		log:     log.Named("sweep-worker"),
		stopCh:  make(chan struct{}),
	}
}

// Start starts the sweep worker
func (w *SweepWorker) Start(ctx context.Context) error {
	if w.config.Interval <= 0 {
		return fmt.Errorf("sweep worker interval must be positive")
	}
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sweep worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("starting sweep worker", zap.Duration("interval", w.config.Interval))

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop stops the sweep worker and waits for an in-flight sweep.
func (w *SweepWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("stopping sweep worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("sweep worker stopped")
}

func (w *SweepWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep and records its outcome.
func (w *SweepWorker) RunOnce(ctx context.Context) *reservation.SweepReport {
	timeout := w.config.Timeout
	if timeout <= 0 {
		timeout = w.config.Interval
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rep := w.sweeper.Sweep(sctx)

	w.mu.Lock()
	w.totalRuns++
	w.lastSweepTime = rep.FinishedAt
	w.lastViolated = rep.Violated
	w.totalViolated += int64(rep.Violated)
	w.totalFailures += int64(len(rep.Failures))
	w.lastSweepError = ""
	if err := rep.Err(); err != nil {
		w.lastSweepError = err.Error()
	}
	w.mu.Unlock()

	if rep.Partial() {
		w.log.Warn("sweep finished with failures",
			zap.Int("violated", rep.Violated),
			zap.Int("failures", len(rep.Failures)))
	}
	return rep
}

// GetStats returns worker statistics
func (w *SweepWorker) GetStats() *SweepWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &SweepWorkerStats{
		IsRunning:      w.running,
		TotalRuns:      w.totalRuns,
		TotalViolated:  w.totalViolated,
		TotalFailures:  w.totalFailures,
		LastSweepTime:  w.lastSweepTime,
		LastViolated:   w.lastViolated,
		LastSweepError: w.lastSweepError,
	}
}
