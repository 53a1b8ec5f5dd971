// Package writer persists observed prices to the price_history table.
//
// The writer:
//   - Accepts price maps from the consumer's store hook (non-blocking)
//   - Accumulates rows and flushes on batch size or interval
//   - Uses pgx batches with ON CONFLICT DO NOTHING for idempotent inserts
package writer
