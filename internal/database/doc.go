// Package database manages the Postgres connection pool used by the price
// history writer.
package database
