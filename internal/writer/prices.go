package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/one-capital/pricefeed/internal/model"
)

// PriceWriter consumes price maps and writes rows to the price_history table.
// It implements the consumer's Store interface.
type PriceWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the Price Consumer's store hook
	input chan priceRow

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []priceRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewPriceWriter creates a new PriceWriter.
func NewPriceWriter(cfg WriterConfig, db *pgxpool.Pool, logger *slog.Logger) *PriceWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceWriter{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan priceRow, cfg.BufferSize),
		batch:  make([]priceRow, 0, cfg.BatchSize),
	}
}

// PutPrices enqueues one row per entry, stamped with the current time.
// Never blocks; rows are dropped with a warning when the buffer is full.
func (w *PriceWriter) PutPrices(ctx context.Context, prices model.PriceMap) error {
	now := time.Now().UTC()
	for symbol, entry := range prices {
		row := priceRow{
			Symbol:      symbol,
			Price:       entry.Current,
			Previous24h: entry.Previous24h,
			RecordedAt:  now,
		}
		select {
		case w.input <- row:
		default:
			w.batchMu.Lock()
			w.metrics.Dropped++
			w.batchMu.Unlock()
			w.logger.Warn("writer buffer full, dropping row", "symbol", symbol)
		}
	}
	return nil
}

// Start begins consuming rows and writing to the database.
func (w *PriceWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("price writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *PriceWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping price writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("price writer stopped")
	case <-ctx.Done():
		w.logger.Warn("price writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *PriceWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads rows from the input channel and accumulates batches.
func (w *PriceWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case row := <-w.input:
			w.handleRow(row)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *PriceWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// handleRow adds a row to the batch, flushing when the batch fills.
func (w *PriceWriter) handleRow(row priceRow) {
	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// flush writes the current batch to the database.
func (w *PriceWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]priceRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if w.db == nil {
		return
	}

	start := time.Now()

	conflicts, err := w.batchInsert(batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed price history",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *PriceWriter) batchInsert(rows []priceRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO price_history (symbol, price, previous_24h, recorded_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (symbol, recorded_at) DO NOTHING
		`, r.Symbol, r.Price.String(), r.Previous24h.String(), r.RecordedAt)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
