package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/one-capital/pricefeed/internal/model"
)

type fakeTarget struct {
	calls int
	err   error
}

func (f *fakeTarget) PutPrices(ctx context.Context, prices model.PriceMap) error {
	f.calls++
	return f.err
}

func TestMulti_PutPrices_AllTargets(t *testing.T) {
	a := &fakeTarget{}
	b := &fakeTarget{}
	m := Multi{a, b}

	prices := model.PriceMap{"BTC": {Current: decimal.NewFromInt(50000)}}

	if err := m.PutPrices(context.Background(), prices); err != nil {
		t.Fatalf("PutPrices failed: %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", a.calls, b.calls)
	}
}

func TestMulti_PutPrices_ContinuesPastFailure(t *testing.T) {
	failed := errors.New("redis down")
	a := &fakeTarget{err: failed}
	b := &fakeTarget{}
	m := Multi{a, b}

	err := m.PutPrices(context.Background(), model.PriceMap{"ETH": {}})

	if !errors.Is(err, failed) {
		t.Errorf("err = %v, want wrapped %v", err, failed)
	}
	if b.calls != 1 {
		t.Errorf("second target calls = %d, want 1", b.calls)
	}
}

func TestLatestKey(t *testing.T) {
	if got := latestKey("BTC"); got != "latest:BTC" {
		t.Errorf("latestKey = %q, want %q", got, "latest:BTC")
	}
}
