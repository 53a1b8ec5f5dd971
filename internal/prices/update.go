package prices

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/one-capital/pricefeed/internal/model"
)

// Update is the tagged union of the two payload shapes carried by a prices
// update message. The shape is decided once, at deserialization, instead of
// by property-presence checks at every call site.
type Update interface {
	isUpdate()
}

// FullUpdate replaces the entire cache.
type FullUpdate struct {
	Prices model.PriceMap
}

// PatchUpdate merges a single symbol's fields into the cache.
type PatchUpdate struct {
	Symbol string
	Patch  EntryPatch
}

func (FullUpdate) isUpdate()  {}
func (PatchUpdate) isUpdate() {}

// EntryPatch is a partial PriceEntry: nil fields were omitted by the push and
// are carried over or recomputed during the merge.
type EntryPatch struct {
	Current             *decimal.Decimal `json:"current"`
	Previous24h         *decimal.Decimal `json:"previous24h"`
	Change24h           *decimal.Decimal `json:"change24h"`
	ChangePercentage24h *decimal.Decimal `json:"changePercentage24h"`
}

// patchEnvelope is the single-symbol wire shape {symbol, price}.
type patchEnvelope struct {
	Symbol string      `json:"symbol"`
	Price  *EntryPatch `json:"price"`
}

// DecodeUpdate classifies a prices-channel payload as a FullUpdate or a
// PatchUpdate.
func DecodeUpdate(data []byte) (Update, error) {
	var env patchEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Symbol != "" && env.Price != nil {
		return PatchUpdate{Symbol: env.Symbol, Patch: *env.Price}, nil
	}

	var full model.PriceMap
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, fmt.Errorf("decode prices payload: %w", err)
	}
	return FullUpdate{Prices: full}, nil
}
