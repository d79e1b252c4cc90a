// Package engram provides an embedded, durable memory store for AI agents.
//
// This file implements a fluent query API over Recall.
package engram

import (
	"context"

	"github.com/hupe1980/engram/metadata"
)

// Query creates a fluent recall builder for the given query vector.
//
// Example:
//
//	results, err := db.Query(vector).
//	    Limit(10).
//	    Where(metadata.Eq("topic", metadata.String("geography"))).
//	    Execute(ctx)
func (db *DB) Query(vector []float32) *QueryBuilder {
	return &QueryBuilder{
		db:     db,
		vector: vector,
		limit:  10,
	}
}

// QueryText creates a fluent recall builder that embeds text first.
// Requires WithEmbedder at open time.
func (db *DB) QueryText(text string) *QueryBuilder {
	return &QueryBuilder{
		db:      db,
		text:    text,
		useText: true,
		limit:   10,
	}
}

// QueryBuilder is a fluent builder for constructing recall queries.
type QueryBuilder struct {
	db      *DB
	vector  []float32
	text    string
	useText bool

	limit   int
	ef      int
	filters []metadata.Filter
}

// Limit sets the number of results to return. Default: 10.
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.limit = n
	return qb
}

// EF sets the exploration beam width. Higher values improve recall quality
// but slow down the query.
func (qb *QueryBuilder) EF(ef int) *QueryBuilder {
	qb.ef = ef
	return qb
}

// Where adds metadata filter conditions. All conditions must match.
func (qb *QueryBuilder) Where(filters ...metadata.Filter) *QueryBuilder {
	qb.filters = append(qb.filters, filters...)
	return qb
}

// Execute runs the query and returns the ranked results.
func (qb *QueryBuilder) Execute(ctx context.Context) ([]RecallResult, error) {
	optFns := []func(*RecallOptions){}
	if qb.ef > 0 {
		optFns = append(optFns, WithEF(qb.ef))
	}
	if len(qb.filters) > 0 {
		optFns = append(optFns, WithFilters(metadata.NewFilterSet(qb.filters...)))
	}

	if qb.useText {
		return qb.db.RecallText(ctx, qb.text, qb.limit, optFns...)
	}
	return qb.db.Recall(ctx, qb.vector, qb.limit, optFns...)
}

// First returns only the nearest result, or ErrNotFound if nothing matches.
func (qb *QueryBuilder) First(ctx context.Context) (RecallResult, error) {
	qb.limit = 1
	results, err := qb.Execute(ctx)
	if err != nil {
		return RecallResult{}, err
	}
	if len(results) == 0 {
		return RecallResult{}, ErrNotFound
	}
	return results[0], nil
}

// Exists checks if at least one record matches the query.
func (qb *QueryBuilder) Exists(ctx context.Context) (bool, error) {
	qb.limit = 1
	results, err := qb.Execute(ctx)
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}
