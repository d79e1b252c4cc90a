package metadata

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Index combines metadata storage with an inverted index backed by Roaring
// Bitmaps. It answers "which record ids carry this field=value" without
// touching the records themselves.
//
// Architecture:
//   - Primary storage: map[uint64]Document (metadata by record id)
//   - Inverted index: map[field]map[valueKey]*roaring64.Bitmap (posting lists)
type Index struct {
	mu sync.RWMutex

	// Primary metadata storage (id -> metadata document)
	documents map[uint64]Document

	// Inverted index for fast filtering
	// Structure: field -> valueKey -> bitmap of ids
	inverted map[string]map[string]*roaring64.Bitmap
}

// NewIndex creates a new metadata index.
func NewIndex() *Index {
	return &Index{
		documents: make(map[uint64]Document),
		inverted:  make(map[string]map[string]*roaring64.Bitmap),
	}
}

// Set stores metadata for an id and updates the inverted index.
// This replaces any existing metadata for the id.
func (ix *Index) Set(id uint64, doc Document) {
	if doc == nil {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if oldDoc, exists := ix.documents[id]; exists {
		ix.removeFromIndexLocked(id, oldDoc)
	}

	ix.documents[id] = doc
	ix.addToIndexLocked(id, doc)
}

// Get retrieves metadata for an id.
func (ix *Index) Get(id uint64) (Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	doc, ok := ix.documents[id]
	return doc, ok
}

// Delete removes metadata for an id and updates the inverted index.
func (ix *Index) Delete(id uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if doc, exists := ix.documents[id]; exists {
		ix.removeFromIndexLocked(id, doc)
	}

	delete(ix.documents, id)
}

// Len returns the number of documents in the index.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return len(ix.documents)
}

// addToIndexLocked adds a document to the inverted index.
// Caller must hold ix.mu.Lock().
func (ix *Index) addToIndexLocked(id uint64, doc Document) {
	for key, value := range doc {
		valueMap, ok := ix.inverted[key]
		if !ok {
			valueMap = make(map[string]*roaring64.Bitmap)
			ix.inverted[key] = valueMap
		}

		valueKey := value.Key()
		bitmap, ok := valueMap[valueKey]
		if !ok {
			bitmap = roaring64.New()
			valueMap[valueKey] = bitmap
		}

		bitmap.Add(id)
	}
}

// removeFromIndexLocked removes a document from the inverted index.
// Caller must hold ix.mu.Lock().
func (ix *Index) removeFromIndexLocked(id uint64, doc Document) {
	for key, value := range doc {
		valueMap, ok := ix.inverted[key]
		if !ok {
			continue
		}

		valueKey := value.Key()
		bitmap, ok := valueMap[valueKey]
		if !ok {
			continue
		}

		bitmap.Remove(id)

		// Clean up empty bitmaps
		if bitmap.IsEmpty() {
			delete(valueMap, valueKey)
			if len(valueMap) == 0 {
				delete(ix.inverted, key)
			}
		}
	}
}

// CompileFilter compiles a FilterSet into a bitmap of matching ids.
// Returns nil if the set contains an operator that cannot be answered from
// posting lists; the caller should fall back to scanning.
//
// Supported operators:
//   - OpEqual: field == value
//   - OpIn: field IN (value1, value2, ...)
func (ix *Index) CompileFilter(fs *FilterSet) *roaring64.Bitmap {
	if fs == nil || len(fs.Filters) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var result *roaring64.Bitmap

	for _, filter := range fs.Filters {
		var filterBitmap *roaring64.Bitmap

		switch filter.Operator {
		case OpEqual:
			filterBitmap = ix.getBitmapLocked(filter.Key, filter.Value)

		case OpIn:
			arr, ok := filter.Value.AsArray()
			if !ok {
				// Can't compile OpIn with non-array value
				return nil
			}

			filterBitmap = roaring64.New()
			for _, v := range arr {
				if bitmap := ix.getBitmapLocked(filter.Key, v); bitmap != nil {
					filterBitmap.Or(bitmap)
				}
			}

		default:
			// Can't compile range or substring operators.
			// Caller should fall back to scanning + evaluating.
			return nil
		}

		// Intersect with previous results (AND operation)
		if result == nil {
			if filterBitmap != nil {
				result = filterBitmap.Clone()
			} else {
				// First filter has no matches
				return roaring64.New()
			}
		} else if filterBitmap != nil {
			result.And(filterBitmap)
		} else {
			// Empty result, no matches possible
			return roaring64.New()
		}

		// Early termination if result is empty
		if result.IsEmpty() {
			return result
		}
	}

	return result
}

// getBitmapLocked retrieves the bitmap for a specific field=value combination.
// Returns nil if no matches exist. Caller must hold ix.mu.RLock().
func (ix *Index) getBitmapLocked(key string, value Value) *roaring64.Bitmap {
	valueMap, ok := ix.inverted[key]
	if !ok {
		return nil
	}

	bitmap, ok := valueMap[value.Key()]
	if !ok {
		return nil
	}

	return bitmap
}

// CreateFilterFunc creates a membership test from a FilterSet.
// This is what the graph search consumes while walking candidates.
//
// Returns:
//   - Fast path: if compilation succeeds, a bitmap-based O(1) lookup
//   - Slow path: falls back to evaluating filters per document
//   - nil if the set is nil or empty (no filtering)
func (ix *Index) CreateFilterFunc(fs *FilterSet) func(uint64) bool {
	if fs == nil || len(fs.Filters) == 0 {
		return nil
	}

	bitmap := ix.CompileFilter(fs)
	if bitmap != nil {
		return func(id uint64) bool {
			return bitmap.Contains(id)
		}
	}

	return func(id uint64) bool {
		ix.mu.RLock()
		doc, ok := ix.documents[id]
		ix.mu.RUnlock()

		if !ok {
			return false
		}
		return fs.Matches(doc)
	}
}

// Stats returns statistics about the index.
type Stats struct {
	DocumentCount    int    // Total documents
	FieldCount       int    // Number of indexed fields
	BitmapCount      int    // Total number of posting lists
	TotalCardinality uint64 // Sum of all posting list cardinalities
}

// GetStats returns statistics about the index.
func (ix *Index) GetStats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := Stats{
		DocumentCount: len(ix.documents),
		FieldCount:    len(ix.inverted),
	}

	for _, valueMap := range ix.inverted {
		for _, bitmap := range valueMap {
			stats.BitmapCount++
			stats.TotalCardinality += bitmap.GetCardinality()
		}
	}

	return stats
}
