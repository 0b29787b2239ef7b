package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"usdfcterminal/domain"
	"usdfcterminal/observability"
)

// Sources resolves the five upstream reads a snapshot composes. Each
// method degrades to a zero value on error rather than failing the tick
// so gaps in upstream availability are still observable.
type Sources interface {
	TCR(ctx context.Context) (float64, error)
	TotalSupply(ctx context.Context) (float64, error)
	Liquidity(ctx context.Context) (float64, error)
	HolderCount(ctx context.Context) (uint64, error)
	// BestAPRs returns the best lend APR (max over active markets) and
	// best borrow APR (min over active markets).
	BestAPRs(ctx context.Context) (lendAPR, borrowAPR float64, err error)
}

// Collector drives the fixed-cadence snapshot collection tick, joining
// Sources outputs into a MetricSnapshot and writing it through both the
// in-memory ring and the durable store.
type Collector struct {
	sources  Sources
	ring     *Ring
	store    *Store
	capacity int
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	once     sync.Once
}

// NewCollector constructs a Collector. now defaults to time.Now, logger
// to slog.Default, when nil.
func NewCollector(sources Sources, ring *Ring, store *Store, capacity int, interval time.Duration, now func() time.Time, logger *slog.Logger) *Collector {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		sources:  sources,
		ring:     ring,
		store:    store,
		capacity: capacity,
		interval: interval,
		now:      now,
		logger:   logger,
	}
}

// Run blocks, collecting a snapshot on every tick until ctx is
// cancelled.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	c.once.Do(func() {
		c.logger.Info("history collector started", "interval", c.interval)
	})
	for {
		if err := c.Tick(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("history tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs one collection cycle: it invokes every source
// concurrently, degrades missing components to 0, and records the
// resulting snapshot in the ring and durable store.
func (c *Collector) Tick(ctx context.Context) error {
	snapshot := domain.MetricSnapshot{Timestamp: c.now().Unix()}
	var failed atomic.Bool

	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		tcr, err := c.sources.TCR(ctx)
		if err != nil {
			failed.Store(true)
			return
		}
		snapshot.TCR = tcr
	}()
	go func() {
		defer wg.Done()
		supply, err := c.sources.TotalSupply(ctx)
		if err != nil {
			failed.Store(true)
			return
		}
		snapshot.Supply = supply
	}()
	go func() {
		defer wg.Done()
		liquidity, err := c.sources.Liquidity(ctx)
		if err != nil {
			failed.Store(true)
			return
		}
		snapshot.Liquidity = liquidity
	}()
	go func() {
		defer wg.Done()
		holders, err := c.sources.HolderCount(ctx)
		if err != nil {
			failed.Store(true)
			return
		}
		snapshot.Holders = holders
	}()
	go func() {
		defer wg.Done()
		lendAPR, borrowAPR, err := c.sources.BestAPRs(ctx)
		if err != nil {
			failed.Store(true)
			return
		}
		snapshot.LendAPR = lendAPR
		snapshot.BorrowAPR = borrowAPR
	}()
	wg.Wait()
	partial := failed.Load()

	c.ring.Append(snapshot)

	if c.store != nil {
		if err := c.store.Upsert(ctx, snapshot, c.capacity); err != nil {
			observability.Core().RecordSnapshotOutcome("store_error")
			return err
		}
	}
	if partial {
		observability.Core().RecordSnapshotOutcome("partial")
	} else {
		observability.Core().RecordSnapshotOutcome("ok")
	}
	return nil
}

// Hydrate loads the newest capacity rows from the durable store into
// the ring, for restart survival.
func (c *Collector) Hydrate(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	snapshots, err := c.store.LoadNewest(ctx, c.capacity)
	if err != nil {
		return err
	}
	c.ring.Hydrate(snapshots)
	return nil
}
