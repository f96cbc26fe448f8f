// Package memory implements the fact storage and retrieval core of the
// membridge knowledge bridge.
//
// A Fact is a short piece of text with a vector embedding and metadata
// (project, category, source, creation time, optional expiration). Facts are
// immutable after creation: corrections are new facts, removal is an explicit
// delete or an expiration sweep.
//
// Architecture:
//   - Store: vector storage backend (chromem-go adapter in store/chromem)
//   - Embedder: text-to-vector conversion (ollama, openai, onnx, mock)
//   - Registry: per-(project, category) default TTLs, loaded once at startup
//   - Manager: orchestrates the write path, retrieval, listing, the
//     expiration sweep and statistics
//
// Expiration is enforced at read time: Search and List drop expired facts
// after the vector query, so retrieval correctness never depends on the
// sweep having run. Prune only reclaims storage.
package memory
