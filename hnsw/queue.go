package hnsw

// queueItem is one entry in a priority queue.
type queueItem struct {
	id   uint64
	dist float32
}

// priorityQueue is a binary heap of queueItems with value-based storage.
// It does not implement container/heap to avoid interface overhead. Equal
// distances are ordered by id so that heap decisions never depend on
// insertion order.
type priorityQueue struct {
	max   bool // true = max heap (worst on top), false = min heap
	items []queueItem
}

func newPriorityQueue(max bool) *priorityQueue {
	return &priorityQueue{
		max:   max,
		items: make([]queueItem, 0, 16),
	}
}

// reset clears the queue for reuse.
func (pq *priorityQueue) reset() {
	pq.items = pq.items[:0]
}

// Len returns the number of elements in the heap.
func (pq *priorityQueue) Len() int {
	return len(pq.items)
}

// top returns the root of the heap: the worst item of a max heap, the best
// of a min heap.
func (pq *priorityQueue) top() (queueItem, bool) {
	if len(pq.items) == 0 {
		return queueItem{}, false
	}
	return pq.items[0], true
}

// minItem returns the item with the smallest distance. O(n) on a max heap,
// but n is bounded by ef.
func (pq *priorityQueue) minItem() (queueItem, bool) {
	if len(pq.items) == 0 {
		return queueItem{}, false
	}
	best := pq.items[0]
	for _, item := range pq.items[1:] {
		if item.dist < best.dist || (item.dist == best.dist && item.id < best.id) {
			best = item
		}
	}
	return best, true
}

// push inserts an item while maintaining the heap invariant.
func (pq *priorityQueue) push(item queueItem) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// pushBounded inserts into a heap capped at capacity. On a full max heap a
// better (smaller) item replaces the current worst; anything else is
// dropped.
func (pq *priorityQueue) pushBounded(item queueItem, capacity int) {
	if len(pq.items) < capacity {
		pq.push(item)
		return
	}

	root := pq.items[0]
	var better bool
	if pq.max {
		better = item.dist < root.dist || (item.dist == root.dist && item.id < root.id)
	} else {
		better = item.dist > root.dist || (item.dist == root.dist && item.id > root.id)
	}
	if better {
		pq.items[0] = item
		pq.siftDown(0)
	}
}

// pop removes and returns the root of the heap.
func (pq *priorityQueue) pop() (queueItem, bool) {
	n := len(pq.items)
	if n == 0 {
		return queueItem{}, false
	}

	item := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]

	if len(pq.items) > 0 {
		pq.siftDown(0)
	}

	return item, true
}

func (pq *priorityQueue) less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if pq.max {
		if a.dist != b.dist {
			return a.dist > b.dist
		}
		return a.id > b.id
	}
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.id < b.id
}

func (pq *priorityQueue) swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

func (pq *priorityQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !pq.less(i, parent) {
			break
		}
		pq.swap(i, parent)
		i = parent
	}
}

func (pq *priorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		right := left + 1
		if right < n && pq.less(right, left) {
			child = right
		}
		if !pq.less(child, i) {
			break
		}
		pq.swap(i, child)
		i = child
	}
}
