// Package node provides access to the three title databases.
//
// A Node applies idempotent writes (replace-by-key and delete-by-key) and
// runs read statements compiled by package query. Every call is bounded by a
// per-node timeout; any failure to reach or use the database is reported as
// a NODE_UNAVAILABLE *model.Error so callers can decide whether to fail over
// or defer the work to the recovery queue.
//
// SQLNode speaks to MySQL (production) or SQLite (tests, single-host demos)
// through database/sql. The same SQL is emitted for both drivers.
package node
