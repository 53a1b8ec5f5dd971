package writer

import (
	"time"

	"github.com/shopspring/decimal"
)

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           // Rows per database batch
	FlushInterval time.Duration // Max time a row waits before flush
	BufferSize    int           // Input channel capacity
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64
}

// priceRow is one row of the price_history table.
type priceRow struct {
	Symbol      string
	Price       decimal.Decimal
	Previous24h decimal.Decimal
	RecordedAt  time.Time
}
