// Package prices implements the Price Consumer component.
//
// The Price Consumer:
//   - Populates its cache with one initial REST fetch before any push arrives
//   - Merges full-map and single-symbol updates from the "prices" channel
//   - Falls back to periodic REST polling while the socket is disconnected
//   - Prefers stale-but-available data: a failed fetch never clears the cache
package prices
