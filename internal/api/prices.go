package api

import (
	"context"
	"fmt"

	"github.com/one-capital/pricefeed/internal/model"
)

// GetPrices fetches the full price map. This is the endpoint the Price
// Consumer uses for its initial load and fallback polling.
func (c *Client) GetPrices(ctx context.Context) (model.PriceMap, error) {
	var prices model.PriceMap
	if err := c.get(ctx, "/api/prices", nil, &prices); err != nil {
		return nil, fmt.Errorf("get prices: %w", err)
	}
	return prices, nil
}
