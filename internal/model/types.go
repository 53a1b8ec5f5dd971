package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Price Types
// -----------------------------------------------------------------------------

// PriceEntry is the unit of the price cache, keyed by symbol.
type PriceEntry struct {
	Current             decimal.Decimal `json:"current"`
	Previous24h         decimal.Decimal `json:"previous24h"`
	Change24h           decimal.Decimal `json:"change24h"`
	ChangePercentage24h decimal.Decimal `json:"changePercentage24h"`
}

// PriceMap holds the full set of known prices, keyed by symbol.
type PriceMap map[string]PriceEntry

// Clone returns an independent copy of the map.
func (m PriceMap) Clone() PriceMap {
	out := make(PriceMap, len(m))
	for sym, entry := range m {
		out[sym] = entry
	}
	return out
}

// Derived computes change24h and changePercentage24h from a current price and
// the 24h-ago price. A zero previous24h yields a 0% change rather than a
// division by zero.
func Derived(current, previous24h decimal.Decimal) (change, changePct decimal.Decimal) {
	change = current.Sub(previous24h)
	if previous24h.IsZero() {
		return change, decimal.Zero
	}
	changePct = change.Div(previous24h).Mul(decimal.NewFromInt(100))
	return change, changePct
}

// PricePoint is a single observed price destined for the price_history table.
type PricePoint struct {
	Symbol      string
	Price       decimal.Decimal
	Previous24h decimal.Decimal
	RecordedAt  time.Time
}

// -----------------------------------------------------------------------------
// Dashboard Entities
// -----------------------------------------------------------------------------

// Vault represents a simulated investment portfolio.
type Vault struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"userId"`
	Name        string       `json:"name"`
	Strategy    string       `json:"strategy"` // "manual", "percentage", "drift"
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Allocations []Allocation `json:"allocations,omitempty"`
}

// Allocation is a target weight for one asset within a vault.
type Allocation struct {
	ID               int64           `json:"id"`
	VaultID          int64           `json:"vaultId"`
	Symbol           string          `json:"symbol"`
	TargetPercentage decimal.Decimal `json:"targetPercentage"`
}

// User is the authenticated dashboard user returned by the session check.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
