// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - KnowledgeStore: Dual-collection vector storage and similarity search
//   - EmbeddingService: Generates vector embeddings for chunks and queries
//   - AuditStore: Append-only investigation records
//   - IngestionLedger: File identities already indexed
//   - Normaliser: Extracts text from landing files
//   - Chunker: Splits document text into semantic chunks
//   - RuleSource: Supplies the versioned SOP rule table
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Without it, classification uses retrieval votes only and
//     compliance is evaluated by rules alone.
//   - FileWatcher: Without it, the ingestion loop relies on polling scans.
//   - Metrics: Without it, nothing is exported.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
