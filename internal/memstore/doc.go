// AngelaMos | 2026
// doc.go

// Package memstore holds in-memory implementations of the SQL repositories.
// Each store guards its map with a mutex, so compare-and-set operations keep
// the same single-winner behaviour as their PostgreSQL counterparts. Used by
// service tests that need the real services without PostgreSQL.
package memstore
