package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// OverdueMarker moves past-due invoices to OVERDUE, at most limit per call.
// *invoicing.InvoiceService implements it.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, limit int) (int, error)
}

// OverdueSweeperConfig holds configuration for the overdue sweeper
type OverdueSweeperConfig struct {
	Enabled bool

	// Interval between sweeps
	Interval time.Duration

	// BatchSize bounds how many invoices one MarkOverdue call handles
	BatchSize int

	// RunTimeout is the maximum time for one sweep
	RunTimeout time.Duration
}

// DefaultOverdueSweeperConfig returns default configuration
func DefaultOverdueSweeperConfig() OverdueSweeperConfig {
	return OverdueSweeperConfig{
		Enabled:    true,
		Interval:   time.Hour,
		BatchSize:  100,
		RunTimeout: 5 * time.Minute,
	}
}

// Validate checks the configuration
func (c OverdueSweeperConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("%w: run timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// SweepStats summarizes the sweeper's work since start
type SweepStats struct {
	Runs        int64
	Marked      int64
	Failures    int64
	LastRunAt   time.Time
	LastRunTook time.Duration
}

// OverdueSweeper periodically marks past-due invoices as OVERDUE.
// A sweep keeps pulling batches until one comes back short, so a backlog
// larger than BatchSize clears in a single run.
type OverdueSweeper struct {
	marker OverdueMarker
	logger *zap.Logger
	config OverdueSweeperConfig

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	sweeping  atomic.Bool

	statsMu sync.Mutex
	stats   SweepStats
}

// NewOverdueSweeper creates a new sweeper
func NewOverdueSweeper(marker OverdueMarker, logger *zap.Logger, config OverdueSweeperConfig) *OverdueSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueSweeper{
		marker: marker,
		logger: logger,
		config: config,
	}
}

// Start runs a sweep immediately and then every Interval until Stop
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Overdue sweeper is disabled")
		return nil
	}
	if err := s.config.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.isRunning = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx)

	s.logger.Info("Overdue sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
		zap.Duration("run_timeout", s.config.RunTimeout),
	)
	return nil
}

// Stop cancels the running sweep and waits for it to return
func (s *OverdueSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Overdue sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Overdue sweeper stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the background loop is active
func (s *OverdueSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Stats returns a snapshot of the counters
func (s *OverdueSweeper) Stats() SweepStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *OverdueSweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Overdue sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep bounded by RunTimeout and returns how many
// invoices were marked. Overlapping calls fail with ErrSweepInProgress.
func (s *OverdueSweeper) RunOnce(ctx context.Context) (int, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0, ErrSweepInProgress
	}
	defer s.sweeping.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	started := time.Now()
	total := 0
	var err error
	for {
		var marked int
		marked, err = s.marker.MarkOverdue(runCtx, s.config.BatchSize)
		total += marked
		if err != nil || marked < s.config.BatchSize || runCtx.Err() != nil {
			break
		}
	}
	took := time.Since(started)

	s.statsMu.Lock()
	s.stats.Runs++
	s.stats.Marked += int64(total)
	if err != nil {
		s.stats.Failures++
	}
	s.stats.LastRunAt = started
	s.stats.LastRunTook = took
	s.statsMu.Unlock()

	fields := []zap.Field{zap.Int("marked", total), zap.Duration("took", took)}
	if err != nil {
		s.logger.Warn("Overdue sweep finished with errors", append(fields, zap.Error(err))...)
		return total, err
	}
	if total > 0 {
		s.logger.Info("Overdue sweep finished", fields...)
	} else {
		s.logger.Debug("Overdue sweep found nothing to mark", fields...)
	}
	return total, nil
}
