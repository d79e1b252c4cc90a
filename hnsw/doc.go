// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// The graph is guarded by a single RWMutex: one writer, many readers. Node
// layers are derived from a hash of the node id instead of a random stream,
// so rebuilding the graph from the same insert sequence reproduces it
// exactly. Deletes are logical: a tombstoned node keeps its vector and its
// links and stays navigable, it just never appears in results.
package hnsw
