package writer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/one-capital/pricefeed/internal/model"
)

func TestPriceWriter_PutPrices(t *testing.T) {
	cfg := DefaultWriterConfig()
	w := NewPriceWriter(cfg, nil, nil)

	prices := model.PriceMap{
		"BTC": {
			Current:     decimal.NewFromInt(50000),
			Previous24h: decimal.NewFromInt(48000),
		},
		"ETH": {
			Current:     decimal.NewFromInt(3000),
			Previous24h: decimal.NewFromInt(3100),
		},
	}

	if err := w.PutPrices(context.Background(), prices); err != nil {
		t.Fatalf("PutPrices failed: %v", err)
	}

	rows := map[string]priceRow{}
	for i := 0; i < 2; i++ {
		select {
		case row := <-w.input:
			rows[row.Symbol] = row
		default:
			t.Fatalf("expected 2 rows enqueued, got %d", i)
		}
	}

	btc := rows["BTC"]
	if !btc.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("BTC price = %s, want 50000", btc.Price)
	}
	if !btc.Previous24h.Equal(decimal.NewFromInt(48000)) {
		t.Errorf("BTC previous_24h = %s, want 48000", btc.Previous24h)
	}
	if btc.RecordedAt.IsZero() {
		t.Error("RecordedAt not stamped")
	}
}

func TestPriceWriter_PutPrices_DropsWhenFull(t *testing.T) {
	cfg := DefaultWriterConfig()
	cfg.BufferSize = 1
	w := NewPriceWriter(cfg, nil, nil)

	prices := model.PriceMap{
		"BTC": {Current: decimal.NewFromInt(1)},
		"ETH": {Current: decimal.NewFromInt(2)},
	}

	if err := w.PutPrices(context.Background(), prices); err != nil {
		t.Fatalf("PutPrices failed: %v", err)
	}

	if got := w.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestPriceWriter_HandleRow_FlushOnBatchSize(t *testing.T) {
	cfg := DefaultWriterConfig()
	cfg.BatchSize = 2
	w := NewPriceWriter(cfg, nil, nil)

	row := priceRow{
		Symbol:     "BTC",
		Price:      decimal.NewFromInt(50000),
		RecordedAt: time.Now(),
	}

	w.handleRow(row)

	w.batchMu.Lock()
	pending := len(w.batch)
	w.batchMu.Unlock()
	if pending != 1 {
		t.Fatalf("batch size = %d, want 1", pending)
	}

	// Second row reaches BatchSize; flush takes ownership of the batch even
	// with no database configured.
	w.handleRow(row)

	w.batchMu.Lock()
	pending = len(w.batch)
	w.batchMu.Unlock()
	if pending != 0 {
		t.Errorf("batch size after flush = %d, want 0", pending)
	}
}
