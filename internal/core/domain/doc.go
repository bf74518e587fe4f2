// Package domain defines the core business entities for claim auditing.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A policy or claim file from the landing area
//   - Chunk: A semantically coherent segment of a Document
//   - EmbeddingRecord: A chunk vector tagged with its collection
//   - Investigation: One run of the audit workflow for a single claim
//   - AuditEntry: The immutable record an Investigation leaves behind
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
