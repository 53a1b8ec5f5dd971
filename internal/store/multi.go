package store

import (
	"context"
	"errors"

	"github.com/one-capital/pricefeed/internal/model"
)

// Target is anything that can receive price updates.
type Target interface {
	PutPrices(ctx context.Context, prices model.PriceMap) error
}

// Multi fans one PutPrices call out to several targets. Every target is
// attempted; errors are joined rather than short-circuiting.
type Multi []Target

// PutPrices delivers the prices to all targets.
func (m Multi) PutPrices(ctx context.Context, prices model.PriceMap) error {
	var errs []error
	for _, t := range m {
		if err := t.PutPrices(ctx, prices); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
