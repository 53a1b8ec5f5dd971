// Package model defines shared data types used across the One Capital price feed.
//
// Conventions:
//   - Prices: shopspring/decimal values; JSON decoding accepts both quoted and
//     bare numbers so dashboard payloads parse unchanged
//   - Timestamps: time.Time in UTC
//   - IDs: int64 for dashboard entities, uuid.UUID for users
package model
