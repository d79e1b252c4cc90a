package hnsw

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/engram/distance"
)

// node is one graph member. Its vector is owned by the graph (already
// normalized for cosine), and links[l] holds its neighbors at layer l with
// the link distance cached for re-pruning.
type node struct {
	vector []float32
	links  [][]neighbor
}

// neighbor is a link to another node with its distance.
type neighbor struct {
	id   uint64
	dist float32
}

// Index represents the Hierarchical Navigable Small World graph.
type Index struct {
	mu sync.RWMutex

	nodes      map[uint64]*node
	entryPoint uint64
	maxLevel   int
	live       int
	tombstones *roaring64.Bitmap

	// Configuration
	maxConnectionsPerLayer int
	maxConnectionsLayer0   int
	layerMultiplier        float64
	distFunc               distance.Func
	normalize              bool
	opts                   Options

	searchPool sync.Pool
}

// searchContext bundles the scratch state of one traversal.
type searchContext struct {
	visited    *visitedSet
	candidates *priorityQueue // min heap: exploration frontier
	results    *priorityQueue // max heap: best ef found so far

	sorted       []queueItem
	selected     []queueItem
	selectedVecs [][]float32
	queryBuf     []float32
}

// New creates a new index.
func New(optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, &InvalidDimensionError{Dimension: opts.Dimension}
	}
	if opts.M < minimumM {
		opts.M = minimumM
	}
	if opts.MMax0 <= 0 {
		opts.MMax0 = mmax0Multiplier * opts.M
	}
	if opts.EFConstruction <= 0 {
		opts.EFConstruction = DefaultEFConstruction
	}
	if opts.EFSearch <= 0 {
		opts.EFSearch = DefaultEFSearch
	}

	distFunc, err := newDistanceFunc(opts.Metric)
	if err != nil {
		return nil, err
	}

	ix := &Index{
		nodes:                  make(map[uint64]*node),
		tombstones:             roaring64.New(),
		maxConnectionsPerLayer: opts.M,
		maxConnectionsLayer0:   opts.MMax0,
		layerMultiplier:        layerNormalizationBase / math.Log(float64(opts.M)),
		distFunc:               distFunc,
		normalize:              opts.Metric == distance.MetricCosine,
		opts:                   opts,
	}

	ix.searchPool.New = func() any {
		return &searchContext{
			visited:    newVisitedSet(1024),
			candidates: newPriorityQueue(false),
			results:    newPriorityQueue(true),
		}
	}

	return ix, nil
}

func newDistanceFunc(metric distance.Metric) (distance.Func, error) {
	switch metric {
	case distance.MetricL2:
		return distance.SquaredL2, nil
	case distance.MetricCosine:
		// For unit vectors, 0.5 * SquaredL2 equals 1 - dot and preserves
		// the cosine distance ordering.
		return func(a, b []float32) float32 {
			return 0.5 * distance.SquaredL2(a, b)
		}, nil
	case distance.MetricDot:
		// Dot similarity is higher-is-better; negate it into a distance.
		return func(a, b []float32) float32 {
			return -distance.Dot(a, b)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", metric)
	}
}

// layerForID maps a node id to its target layer. The id is avalanched with
// the splitmix64 finalizer and pushed through the exponential quantile
// function, so each id lands on the same layer in every rebuild.
func (ix *Index) layerForID(id uint64) int {
	x := id + 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31

	const inv = 1.0 / (1 << 53)
	r := float64(x>>11) * inv
	if r == 0 {
		r = inv
	}
	return int(math.Floor(-math.Log(r) * ix.layerMultiplier))
}

// prepareVector validates v and returns the graph-owned copy, normalized
// when the metric wants unit vectors.
func (ix *Index) prepareVector(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, ErrEmptyVector
	}
	if len(v) != ix.opts.Dimension {
		return nil, &DimensionMismatchError{Expected: ix.opts.Dimension, Actual: len(v)}
	}

	vec := slices.Clone(v)
	if ix.normalize {
		if !distance.NormalizeL2InPlace(vec) {
			return nil, ErrZeroVector
		}
	}
	return vec, nil
}

// prepareQuery validates q, normalizing into the context scratch buffer to
// keep queries allocation-free.
func (ix *Index) prepareQuery(sc *searchContext, q []float32) ([]float32, error) {
	if len(q) == 0 {
		return nil, ErrEmptyVector
	}
	if len(q) != ix.opts.Dimension {
		return nil, &DimensionMismatchError{Expected: ix.opts.Dimension, Actual: len(q)}
	}

	if !ix.normalize {
		return q, nil
	}

	if cap(sc.queryBuf) < len(q) {
		sc.queryBuf = make([]float32, len(q))
	}
	buf := sc.queryBuf[:len(q)]
	copy(buf, q)
	if !distance.NormalizeL2InPlace(buf) {
		return nil, ErrZeroVector
	}
	sc.queryBuf = buf
	return buf, nil
}

func (ix *Index) getSearchContext() *searchContext {
	return ix.searchPool.Get().(*searchContext)
}

func (ix *Index) putSearchContext(sc *searchContext) {
	sc.visited.reset()
	sc.candidates.reset()
	sc.results.reset()
	ix.searchPool.Put(sc)
}

// Insert adds the vector under the given id. Inserting an id that already
// exists replaces its vector and clears its tombstone but keeps its links;
// the write path never produces duplicate ids, only replay of unusual logs
// does.
func (ix *Index) Insert(id uint64, v []float32) error {
	vec, err := ix.prepareVector(v)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if existing, ok := ix.nodes[id]; ok {
		existing.vector = vec
		if ix.tombstones.Contains(id) {
			ix.tombstones.Remove(id)
			ix.live++
		}
		return nil
	}

	level := ix.layerForID(id)
	n := &node{
		vector: vec,
		links:  make([][]neighbor, level+1),
	}

	if len(ix.nodes) == 0 {
		ix.nodes[id] = n
		ix.entryPoint = id
		ix.maxLevel = level
		ix.live++
		return nil
	}

	sc := ix.getSearchContext()
	defer ix.putSearchContext(sc)

	currID := ix.entryPoint
	currDist := ix.distFunc(vec, ix.nodes[currID].vector)

	// Greedy descent through the layers above the new node's level.
	for l := ix.maxLevel; l > level; l-- {
		currID, currDist = ix.greedyStep(vec, currID, currDist, l)
	}

	// Beam search and link on each layer the node participates in.
	// Tombstoned nodes stay eligible as link targets here; excluding them
	// would orphan inserts that arrive after every close neighbor was
	// deleted.
	for l := min(level, ix.maxLevel); l >= 0; l-- {
		ix.searchLayer(sc, vec, currID, currDist, l, ix.opts.EFConstruction, nil, false)

		// The best candidate seeds the next layer down; capture it
		// before neighbor selection drains the heap.
		if best, ok := sc.results.minItem(); ok {
			currID = best.id
			currDist = best.dist
		}

		maxM := ix.maxConnectionsPerLayer
		if l == 0 {
			maxM = ix.maxConnectionsLayer0
		}

		selected := ix.selectNeighbors(sc, maxM)

		// The node owns its link slice; selected aliases pooled scratch
		// that linkBack below will clobber.
		links := make([]neighbor, len(selected))
		for i, s := range selected {
			links[i] = neighbor{id: s.id, dist: s.dist}
		}
		n.links[l] = links

		for _, nb := range links {
			ix.linkBack(sc, nb.id, id, l, nb.dist, maxM)
		}
	}

	ix.nodes[id] = n
	ix.live++

	if level > ix.maxLevel {
		ix.maxLevel = level
		ix.entryPoint = id
	}
	return nil
}

// greedyStep walks one layer to the locally nearest node.
func (ix *Index) greedyStep(query []float32, currID uint64, currDist float32, level int) (uint64, float32) {
	changed := true
	for changed {
		changed = false
		n := ix.nodes[currID]
		if n == nil || level >= len(n.links) {
			break
		}
		for _, nb := range n.links[level] {
			target := ix.nodes[nb.id]
			if target == nil {
				continue
			}
			d := ix.distFunc(query, target.vector)
			if d < currDist {
				currID = nb.id
				currDist = d
				changed = true
			}
		}
	}
	return currID, currDist
}

// searchLayer runs the beam search on one layer. Filtered nodes, and
// tombstoned ones when excludeTombstoned is set, are crossed during
// navigation but kept out of sc.results.
func (ix *Index) searchLayer(sc *searchContext, query []float32, epID uint64, epDist float32, level, ef int, filter FilterFunc, excludeTombstoned bool) {
	sc.visited.reset()
	sc.candidates.reset()
	sc.results.reset()

	sc.visited.visit(epID)
	sc.candidates.push(queueItem{id: epID, dist: epDist})
	if ix.admissible(epID, filter, excludeTombstoned) {
		sc.results.push(queueItem{id: epID, dist: epDist})
	}

	for sc.candidates.Len() > 0 {
		curr, _ := sc.candidates.pop()

		if sc.results.Len() >= ef {
			worst, _ := sc.results.top()
			if curr.dist > worst.dist {
				break
			}
		}

		n := ix.nodes[curr.id]
		if n == nil || level >= len(n.links) {
			continue
		}

		for _, nb := range n.links[level] {
			if sc.visited.visited(nb.id) {
				continue
			}
			sc.visited.visit(nb.id)

			target := ix.nodes[nb.id]
			if target == nil {
				continue
			}
			d := ix.distFunc(query, target.vector)

			// Skip clearly bad candidates once ef results are in hand.
			if sc.results.Len() >= ef {
				worst, _ := sc.results.top()
				if d > worst.dist {
					continue
				}
			}

			sc.candidates.push(queueItem{id: nb.id, dist: d})
			if ix.admissible(nb.id, filter, excludeTombstoned) {
				sc.results.pushBounded(queueItem{id: nb.id, dist: d}, ef)
			}
		}
	}
}

// admissible reports whether id may enter a result set.
func (ix *Index) admissible(id uint64, filter FilterFunc, excludeTombstoned bool) bool {
	if excludeTombstoned && ix.tombstones.Contains(id) {
		return false
	}
	return filter == nil || filter(id)
}

// selectNeighbors picks up to m links from sc.results, draining it.
func (ix *Index) selectNeighbors(sc *searchContext, m int) []queueItem {
	if !ix.opts.Heuristic || sc.results.Len() <= m {
		return ix.selectNeighborsSimple(sc, m)
	}

	cands := ix.extractSortedCandidates(sc)
	result := ix.applyHeuristic(sc, cands, m)
	if len(result) < m {
		result = fillUpNeighbors(result, cands, m)
	}
	return result
}

// selectNeighborsSimple keeps the m nearest candidates.
func (ix *Index) selectNeighborsSimple(sc *searchContext, m int) []queueItem {
	for sc.results.Len() > m {
		sc.results.pop()
	}

	res := sc.selected[:0]
	for sc.results.Len() > 0 {
		item, _ := sc.results.pop()
		res = append(res, item)
	}
	// The max heap popped worst first; reverse to best first.
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	sc.selected = res
	return res
}

// extractSortedCandidates drains sc.results into a best-first slice.
func (ix *Index) extractSortedCandidates(sc *searchContext) []queueItem {
	temp := sc.sorted[:0]
	for sc.results.Len() > 0 {
		item, _ := sc.results.pop()
		temp = append(temp, item)
	}
	for i, j := 0, len(temp)-1; i < j; i, j = i+1, j-1 {
		temp[i], temp[j] = temp[j], temp[i]
	}
	sc.sorted = temp
	return temp
}

// applyHeuristic keeps a candidate only if it is nearer to the new node
// than to every neighbor already selected, favoring links that span
// different directions of the space.
func (ix *Index) applyHeuristic(sc *searchContext, cands []queueItem, m int) []queueItem {
	result := sc.selected[:0]
	vecs := sc.selectedVecs[:0]

	for _, cand := range cands {
		if len(result) >= m {
			break
		}
		cn := ix.nodes[cand.id]
		if cn == nil {
			continue
		}

		good := true
		for _, rv := range vecs {
			if ix.distFunc(cn.vector, rv) < cand.dist {
				good = false
				break
			}
		}
		if good {
			result = append(result, cand)
			vecs = append(vecs, cn.vector)
		}
	}

	sc.selected = result
	sc.selectedVecs = vecs
	return result
}

// fillUpNeighbors backfills pruned candidates until m links are reached.
func fillUpNeighbors(result []queueItem, cands []queueItem, m int) []queueItem {
	for _, cand := range cands {
		if len(result) >= m {
			break
		}
		found := false
		for _, r := range result {
			if r.id == cand.id {
				found = true
				break
			}
		}
		if !found {
			result = append(result, cand)
		}
	}
	return result
}

// linkBack adds id as a neighbor of sourceID, re-pruning with the cached
// link distances when the list is full.
func (ix *Index) linkBack(sc *searchContext, sourceID, id uint64, level int, dist float32, maxM int) {
	src := ix.nodes[sourceID]
	if src == nil || level >= len(src.links) {
		return
	}

	conns := src.links[level]
	for _, c := range conns {
		if c.id == id {
			return
		}
	}

	if len(conns) < maxM {
		src.links[level] = append(conns, neighbor{id: id, dist: dist})
		return
	}

	sc.results.reset()
	for _, c := range conns {
		sc.results.push(queueItem{id: c.id, dist: c.dist})
	}
	sc.results.push(queueItem{id: id, dist: dist})

	selected := ix.selectNeighbors(sc, maxM)

	pruned := src.links[level][:0]
	for _, s := range selected {
		pruned = append(pruned, neighbor{id: s.id, dist: s.dist})
	}
	src.links[level] = pruned
}

// Delete tombstones a node. The node keeps its vector and links so the
// graph stays navigable; it is simply excluded from results. Reports
// whether the id was live.
func (ix *Index) Delete(id uint64) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.nodes[id]; !ok {
		return false
	}
	if ix.tombstones.Contains(id) {
		return false
	}

	ix.tombstones.Add(id)
	ix.live--
	return true
}

// Search returns up to k nearest live nodes, best first. Equal distances
// order by smaller id.
func (ix *Index) Search(query []float32, k int, opts *SearchOptions) ([]Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	sc := ix.getSearchContext()
	defer ix.putSearchContext(sc)

	vec, err := ix.prepareQuery(sc, query)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.nodes) == 0 {
		return nil, nil
	}

	ef := ix.opts.EFSearch
	if opts != nil && opts.EF > 0 {
		ef = opts.EF
	}
	if ef < k {
		ef = k
	}

	var filter FilterFunc
	if opts != nil {
		filter = opts.Filter
	}

	currID := ix.entryPoint
	currDist := ix.distFunc(vec, ix.nodes[currID].vector)
	for l := ix.maxLevel; l > 0; l-- {
		currID, currDist = ix.greedyStep(vec, currID, currDist, l)
	}

	ix.searchLayer(sc, vec, currID, currDist, 0, ef, filter, true)

	for sc.results.Len() > k {
		sc.results.pop()
	}

	out := make([]Result, sc.results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		item, _ := sc.results.pop()
		out[i] = Result{ID: item.id, Distance: item.dist}
	}
	return out, nil
}

// Contains reports whether id is present and live.
func (ix *Index) Contains(id uint64) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.tombstones.Contains(id) {
		return false
	}
	_, ok := ix.nodes[id]
	return ok
}

// Len returns the number of live nodes.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.live
}

// Total returns the number of nodes including tombstoned ones.
func (ix *Index) Total() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.nodes)
}

// Dimension returns the configured vector dimensionality.
func (ix *Index) Dimension() int {
	return ix.opts.Dimension
}

// Metric returns the configured distance metric.
func (ix *Index) Metric() distance.Metric {
	return ix.opts.Metric
}

// Stats summarizes the graph shape.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	st := Stats{
		Nodes:      len(ix.nodes),
		Live:       ix.live,
		Tombstones: int(ix.tombstones.GetCardinality()),
		MaxLevel:   ix.maxLevel,
		Levels:     make([]LevelStats, ix.maxLevel+1),
	}
	for i := range st.Levels {
		st.Levels[i].Level = i
	}

	for _, n := range ix.nodes {
		for l, conns := range n.links {
			if l >= len(st.Levels) {
				continue
			}
			st.Levels[l].Nodes++
			st.Levels[l].Links += len(conns)
		}
	}
	return st
}
