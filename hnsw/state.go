package hnsw

import (
	"fmt"

	"github.com/hupe1980/engram/distance"
)

// State is the portable form of a graph, suitable for gob encoding. It
// carries link topology but no vectors; Restore binds vectors back from
// their owner and recomputes the cached link distances from them.
type State struct {
	Dimension  int
	M          int
	MMax0      int
	Metric     distance.Metric
	EntryPoint uint64
	MaxLevel   int
	Nodes      map[uint64]NodeState
	Tombstones []uint64
}

// NodeState holds one node's neighbor ids per layer.
type NodeState struct {
	Links [][]uint64
}

// State captures the current graph under a read lock.
func (ix *Index) State() *State {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	st := &State{
		Dimension:  ix.opts.Dimension,
		M:          ix.maxConnectionsPerLayer,
		MMax0:      ix.maxConnectionsLayer0,
		Metric:     ix.opts.Metric,
		EntryPoint: ix.entryPoint,
		MaxLevel:   ix.maxLevel,
		Nodes:      make(map[uint64]NodeState, len(ix.nodes)),
		Tombstones: ix.tombstones.ToArray(),
	}

	for id, n := range ix.nodes {
		links := make([][]uint64, len(n.links))
		for l, conns := range n.links {
			ids := make([]uint64, len(conns))
			for i, c := range conns {
				ids[i] = c.id
			}
			links[l] = ids
		}
		st.Nodes[id] = NodeState{Links: links}
	}

	return st
}

// Restore replaces the graph contents with st, fetching each node's vector
// through vectorOf. The state must have been captured from an index with
// the same dimension, link budgets and metric; layer assignment and link
// topology are not portable across configurations. On error the index is
// left unchanged.
func (ix *Index) Restore(st *State, vectorOf func(id uint64) ([]float32, bool)) error {
	if st.Dimension != ix.opts.Dimension {
		return fmt.Errorf("hnsw: state dimension %d does not match index dimension %d", st.Dimension, ix.opts.Dimension)
	}
	if st.M != ix.maxConnectionsPerLayer || st.MMax0 != ix.maxConnectionsLayer0 {
		return fmt.Errorf("hnsw: state link budget M=%d/MMax0=%d does not match index M=%d/MMax0=%d",
			st.M, st.MMax0, ix.maxConnectionsPerLayer, ix.maxConnectionsLayer0)
	}
	if st.Metric != ix.opts.Metric {
		return fmt.Errorf("hnsw: state metric %v does not match index metric %v", st.Metric, ix.opts.Metric)
	}

	nodes := make(map[uint64]*node, len(st.Nodes))
	for id, ns := range st.Nodes {
		v, ok := vectorOf(id)
		if !ok {
			return fmt.Errorf("hnsw: state references id %d with no vector", id)
		}
		vec, err := ix.prepareVector(v)
		if err != nil {
			return fmt.Errorf("hnsw: vector for id %d: %w", id, err)
		}
		nodes[id] = &node{
			vector: vec,
			links:  make([][]neighbor, len(ns.Links)),
		}
	}

	// Second pass: resolve link targets and recompute their distances,
	// which are a pure function of the two endpoint vectors.
	for id, ns := range st.Nodes {
		n := nodes[id]
		for l, ids := range ns.Links {
			conns := make([]neighbor, len(ids))
			for i, nid := range ids {
				target, ok := nodes[nid]
				if !ok {
					return fmt.Errorf("hnsw: node %d links to missing node %d", id, nid)
				}
				conns[i] = neighbor{id: nid, dist: ix.distFunc(n.vector, target.vector)}
			}
			n.links[l] = conns
		}
	}

	if len(nodes) > 0 {
		if _, ok := nodes[st.EntryPoint]; !ok {
			return fmt.Errorf("hnsw: entry point %d is not in the state", st.EntryPoint)
		}
	}

	tombstoned := 0
	for _, id := range st.Tombstones {
		if _, ok := nodes[id]; !ok {
			return fmt.Errorf("hnsw: tombstone references missing node %d", id)
		}
		tombstoned++
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.nodes = nodes
	ix.entryPoint = st.EntryPoint
	ix.maxLevel = st.MaxLevel
	ix.live = len(nodes) - tombstoned
	ix.tombstones.Clear()
	ix.tombstones.AddMany(st.Tombstones)

	return nil
}
