// Package store provides SQLite-backed storage of resource records for the
// local data provider and the REST server.
//
// Every record lives in one table:
//
//	records(resource, id, data, seq)  PRIMARY KEY (resource, id)
//
// data holds the record as canonical JSON; id is the normalized record id.
// seq is a store-wide logical write counter, never a timestamp.
//
// # Deterministic Results
//
// List queries are compiled by querysql from queryir predicates and always
// end with ORDER BY id ASC COLLATE BINARY, so equal sort keys come back in
// the same order on every run.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Open(":memory:") gives a private in-memory store; the single pooled
// connection keeps it alive until Close.
package store
