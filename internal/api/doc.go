// Package api provides a typed client for the One Capital dashboard REST API:
// the price map used as the Price Consumer's fallback fetch, vault CRUD, and
// the authenticated-session check.
package api
