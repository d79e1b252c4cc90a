// Package metadata provides typed metadata documents and filtering for
// memory records.
//
// The metadata system uses a Roaring Bitmap-based inverted index for fast
// filtering during recall operations.
//
// # Metadata Types
//
// Metadata values can be:
//
//   - String: metadata.String("tech")
//   - Int: metadata.Int(2024)
//   - Float: metadata.Float(3.14)
//   - Bool: metadata.Bool(true)
//   - Array: metadata.Array([]metadata.Value{...})
//
// Example:
//
//	meta := metadata.Document{
//	    "source": metadata.String("wiki"),
//	    "year":   metadata.Int(2024),
//	}
//
// # Filtering
//
// A FilterSet is a conjunction of single-field conditions:
//
//	fs := metadata.NewFilterSet(
//	    metadata.Eq("source", metadata.String("wiki")),
//	    metadata.Gte("year", metadata.Int(2020)),
//	)
//
// Equality and set membership compile to bitmap intersections; the other
// operators fall back to scanning documents.
package metadata
