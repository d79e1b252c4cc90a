// Package engram provides an embedded, durable memory store for AI agents.
//
// Engram pairs an append-only binary log with an in-memory HNSW proximity
// graph. Every stored record (text, metadata and its embedding vector) is
// appended to the log before it becomes searchable; on open the log is
// replayed to rebuild the exact same graph, so a crash never loses a
// committed record and never changes what a query returns.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	db, err := engram.New(384).Cosine().Open(ctx, "./data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	id, _ := db.Store(ctx, "the capital of France is Paris",
//	    metadata.Document{"topic": metadata.String("geography")}, vector)
//
//	results, _ := db.Recall(ctx, query, 5)
//	for _, r := range results {
//	    fmt.Println(r.ID, r.Distance, r.Content)
//	}
//
// # Text Helpers
//
// With an embedder injected, records can be stored and recalled by text
// directly:
//
//	db, _ := engram.New(384).
//	    Cosine().
//	    Embedder(embed.NewHashEmbedder(384)).
//	    Open(ctx, "./data")
//
//	db.StoreText(ctx, "the sky is blue", nil)
//	results, _ := db.RecallText(ctx, "sky color", 5)
//
// # Durability Model
//
// Store returns once the record reached the configured durability point.
// The default fsyncs on every append; group commit batches fsyncs for
// throughput while still blocking each Store until its bytes are covered:
//
//	db, _ := engram.New(384).
//	    Durability(mnemo.DurabilityGroupCommit).
//	    Open(ctx, "./data")
//
// # Key Features
//
//   - Append-only crash-safe log with torn-tail recovery
//   - Deterministic HNSW rebuild (same log, same graph, same answers)
//   - Metadata filtering over a roaring-bitmap inverted index
//   - Per-record TTL
//   - Snapshots with delta replay for fast opens
package engram
