// Package sqlite provides a SQLite-based implementation of the audit trail and
// ingestion ledger ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database connection:
//
//   - AuditStore: Append-only investigation records with a digest chain
//   - IngestionLedger: Identities of fully indexed landing files
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Triggers reject UPDATE and DELETE on audit entries.
//
// # Data Location
//
// By default, the database is stored at ~/.claimaudit/data/audit.db
//
// # Thread Safety
//
// All operations are thread-safe. Appends are serialised so each entry links
// to the digest of the one before it.
package sqlite
