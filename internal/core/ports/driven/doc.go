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
//   - Chunker: Splits document content into overlapping chunks
//   - EmbeddingService: Maps text to fixed-dimension vectors
//   - VectorIndex: Stores embedding records and answers k-NN queries
//   - IndexStore: Persists and restores index snapshots atomically
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Generates grounded answers. Without it only retrieval is available.
//   - EmbeddingCache: Memoises embeddings by text. Without it every chunk is embedded.
//   - PromptStore: User-editable prompt templates. Without it the built-in template is used.
//   - DocumentSource: Supplies raw documents for indexing and watch mode.
//   - NormaliserRegistry: Converts raw documents into text.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
