package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hupe1980/engram"
	"github.com/hupe1980/engram/distance"
	"github.com/hupe1980/engram/mnemo"
	"github.com/hupe1980/engram/testutil"
)

func main() {
	seed := int64(4711)
	dim := 32
	size := 20000
	k := 10

	dir, err := os.MkdirTemp("", "engram-demo-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()

	db, err := engram.New(dim).
		SquaredL2().
		M(32).
		Durability(mnemo.DurabilityAsync).
		Open(ctx, dir)
	if err != nil {
		log.Fatal(err)
	}

	rng := testutil.NewRNG(seed)
	vectors := rng.UnitVectors(size, dim)
	query := rng.UnitVector(dim)

	fmt.Println("--- Store ---")
	fmt.Println("Dimension:", dim)
	fmt.Println("Size:", size)

	start := time.Now()

	for i, vec := range vectors {
		if _, err := db.Store(ctx, fmt.Sprintf("memory-%d", i), nil, vec); err != nil {
			log.Fatal(err)
		}
	}

	fmt.Printf("Seconds: %.2f\n\n", time.Since(start).Seconds())

	stats := db.Stats()
	fmt.Printf("Records: %d, log: %d frames / %d bytes, graph: %d nodes / %d levels\n\n",
		stats.Records, stats.LogFrames, stats.LogBytes, stats.Index.Nodes, stats.Index.MaxLevel+1)

	fmt.Println("--- Recall ---")

	start = time.Now()

	results, err := db.Recall(ctx, query, k, engram.WithEF(80))
	if err != nil {
		log.Fatal(err)
	}

	elapsed := time.Since(start)

	for _, r := range results {
		fmt.Printf("ID: %d, Distance: %.4f, Content: %s\n", r.ID, r.Distance, r.Content)
	}
	fmt.Printf("Seconds: %.8f\n\n", elapsed.Seconds())

	fmt.Println("--- Brute force ---")

	start = time.Now()

	truth := testutil.BruteForceSearch(vectors, query, k, distance.SquaredL2)

	elapsed = time.Since(start)

	got := make([]testutil.SearchResult, len(results))
	for i, r := range results {
		got[i] = testutil.SearchResult{ID: r.ID - 1, Distance: r.Distance}
	}

	for _, r := range truth {
		fmt.Printf("ID: %d, Distance: %.4f\n", r.ID+1, r.Distance)
	}
	fmt.Printf("Seconds: %.8f\n", elapsed.Seconds())
	fmt.Printf("Recall@%d: %.2f\n\n", k, testutil.ComputeRecall(truth, got))

	if err := db.Close(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- Reopen ---")

	start = time.Now()

	db, err = engram.Open(ctx, dir, dim, engram.WithMetric(distance.MetricL2))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	fmt.Printf("Recovered %d records in %.2f seconds\n", db.Count(), time.Since(start).Seconds())
}
