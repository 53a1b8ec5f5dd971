package prices

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/one-capital/pricefeed/internal/connection"
	"github.com/one-capital/pricefeed/internal/model"
)

// Feed is the slice of the Connection Manager the consumer reads: the inbound
// message stream and the connected flag that gates fallback polling.
type Feed interface {
	Messages() <-chan connection.Message
	IsConnected() bool
}

// FetchFunc is the externally supplied REST fetch returning the full price map.
type FetchFunc func(ctx context.Context) (model.PriceMap, error)

// Store receives the entries changed by each cache mutation. Optional.
type Store interface {
	PutPrices(ctx context.Context, prices model.PriceMap) error
}

// Config holds consumer configuration.
type Config struct {
	Channel      string        // Channel to consume (default: "prices")
	PollInterval time.Duration // Fallback poll interval (default: 60s)
	CacheTTL     time.Duration // Freshness window for status reporting
	FetchTimeout time.Duration // Per-fetch timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Channel:      "prices",
		PollInterval: 60 * time.Second,
		CacheTTL:     5 * time.Minute,
		FetchTimeout: 10 * time.Second,
	}
}

// Status is the consumer's presentation-facing state.
type Status struct {
	Loading   bool      `json:"loading"`
	Connected bool      `json:"connected"`
	Error     string    `json:"error,omitempty"`
	Symbols   int       `json:"symbols"`
	Fresh     bool      `json:"fresh"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Consumer maintains a best-effort, continuously updated price map sourced
// preferentially from the push stream, falling back to direct polling while
// the socket is down.
type Consumer struct {
	cfg    Config
	cache  *Cache
	fetch  FetchFunc
	feed   Feed
	store  Store
	logger *slog.Logger

	mu      sync.Mutex
	loading bool
	lastErr error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Consumer. store may be nil.
func New(cfg Config, cache *Cache, fetch FetchFunc, feed Feed, store Store, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.Channel == "" {
		cfg.Channel = def.Channel
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cache == nil {
		cache = NewCache(cfg.CacheTTL)
	}

	return &Consumer{
		cfg:    cfg,
		cache:  cache,
		fetch:  fetch,
		feed:   feed,
		store:  store,
		logger: logger,
	}
}

// Start performs the initial fetch and begins consuming push messages.
func (c *Consumer) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	c.logger.Info("price consumer started",
		"channel", c.cfg.Channel,
		"poll_interval", c.cfg.PollInterval,
	)
	return nil
}

// Stop releases the push subscription and clears the fallback timer.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("price consumer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the cache and the current status.
func (c *Consumer) Snapshot() (model.PriceMap, Status) {
	prices := c.cache.Snapshot()

	c.mu.Lock()
	status := Status{
		Loading:   c.loading,
		Connected: c.feed.IsConnected(),
		Symbols:   len(prices),
		Fresh:     c.cache.Fresh(time.Now()),
		UpdatedAt: c.cache.UpdatedAt(),
	}
	if c.lastErr != nil {
		status.Error = c.lastErr.Error()
	}
	c.mu.Unlock()

	return prices, status
}

// run is the consumer's event loop: initial fetch, then push messages
// interleaved with the fallback ticker.
func (c *Consumer) run() {
	defer c.wg.Done()

	c.doFetch()

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case msg, ok := <-c.feed.Messages():
			if !ok {
				return
			}
			c.handleMessage(msg)

		case <-ticker.C:
			// While connected the push stream is authoritative; the tick is
			// a no-op so no duplicate fetch happens.
			if c.feed.IsConnected() {
				continue
			}
			c.doFetch()
		}
	}
}

// handleMessage applies one inbound message to the cache.
func (c *Consumer) handleMessage(msg connection.Message) {
	if msg.Channel != c.cfg.Channel || msg.Type != connection.TypeUpdate {
		return
	}

	update, err := DecodeUpdate(msg.Data)
	if err != nil {
		c.logger.Warn("dropping undecodable update", "error", err)
		return
	}

	now := time.Now()
	switch u := update.(type) {
	case FullUpdate:
		c.cache.ReplaceAll(u.Prices, now)
		c.publish(u.Prices)

	case PatchUpdate:
		entry := c.cache.Merge(u.Symbol, u.Patch, now)
		c.publish(model.PriceMap{u.Symbol: entry})
	}
}

// doFetch runs one REST fetch. A failure records the error and leaves the
// existing cache untouched.
func (c *Consumer) doFetch() {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
	defer cancel()

	prices, err := c.fetch(ctx)

	// A response landing after teardown is not applied.
	if c.ctx.Err() != nil {
		return
	}

	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Warn("price fetch failed, keeping stale cache", "error", err)
		return
	}

	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()

	c.cache.ReplaceAll(prices, time.Now())
	c.publish(prices)
}

// publish hands changed entries to the optional store.
func (c *Consumer) publish(changed model.PriceMap) {
	if c.store == nil || len(changed) == 0 {
		return
	}
	if err := c.store.PutPrices(c.ctx, changed); err != nil {
		c.logger.Warn("failed to publish prices", "error", err)
	}
}
