// Package store publishes the latest observed prices for other dashboard
// processes: a Redis adapter keyed latest:<symbol> with a TTL, and a Multi
// fan-out combining several targets behind the consumer's single store hook.
package store
