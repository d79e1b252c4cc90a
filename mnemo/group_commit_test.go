package mnemo

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_Concurrency(t *testing.T) {
	modes := map[string]Options{
		"sync": {DurabilityMode: DurabilitySync},
		"group commit": {
			DurabilityMode:      DurabilityGroupCommit,
			GroupCommitInterval: 2 * time.Millisecond,
			GroupCommitMaxOps:   16,
		},
	}

	for name, opts := range modes {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, FileName)

			l, err := Open(path, opts)
			require.NoError(t, err)

			concurrency := 50
			framesPerGoroutine := 100
			totalFrames := concurrency * framesPerGoroutine

			var wg sync.WaitGroup
			wg.Add(concurrency)

			// Start concurrent writers
			for i := 0; i < concurrency; i++ {
				go func(id int) {
					defer wg.Done()
					for j := 0; j < framesPerGoroutine; j++ {
						payload := []byte(fmt.Sprintf("writer-%02d-frame-%03d", id, j))
						if _, err := l.Append(payload); err != nil {
							panic(err)
						}
					}
				}(i)
			}

			wg.Wait()

			// Close and reopen to verify data
			require.NoError(t, l.Close())

			l2, err := Open(path, opts)
			require.NoError(t, err)
			defer l2.Close()

			assert.False(t, l2.Report().Torn)

			it, err := l2.Iterate()
			require.NoError(t, err)
			defer it.Close()

			count := 0
			seen := make(map[string]bool)
			lastOffset := int64(-1)
			for {
				payload, offset, err := it.Next()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				count++
				seen[string(payload)] = true
				assert.Greater(t, offset, lastOffset)
				lastOffset = offset
			}

			assert.Equal(t, totalFrames, count)
			assert.Equal(t, totalFrames, len(seen))
		})
	}
}

func TestLog_GroupCommit_Sync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	// Neither the ticker nor the ops threshold can fire here, so the
	// blocked append below is released by the explicit Sync alone.
	opts := Options{
		DurabilityMode:      DurabilityGroupCommit,
		GroupCommitInterval: time.Hour,
		GroupCommitMaxOps:   1000,
	}

	l, err := Open(path, opts)
	require.NoError(t, err)
	defer l.Close()

	// Sync with nothing pending is a no-op.
	assert.NoError(t, l.Sync())

	done := make(chan error, 1)
	go func() {
		_, err := l.Append([]byte("one"))
		done <- err
	}()

	// The append has flushed its bytes once Size grows; it is now
	// parked waiting for a covering fsync.
	require.Eventually(t, func() bool { return l.Size() > HeaderSize }, time.Second, time.Millisecond)

	require.NoError(t, l.Sync())
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), l.Frames())
}

func TestLog_GroupCommit_OpsThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	// With the ticker out of the picture, all four appends are released
	// by the fourth one crossing the ops threshold.
	opts := Options{
		DurabilityMode:      DurabilityGroupCommit,
		GroupCommitInterval: time.Hour,
		GroupCommitMaxOps:   4,
	}

	l, err := Open(path, opts)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(4)
	for i := 0; i < 4; i++ {
		go func(id int) {
			defer wg.Done()
			if _, err := l.Append([]byte(fmt.Sprintf("frame-%d", id))); err != nil {
				panic(err)
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, l.Close())

	l2, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	defer l2.Close()

	assert.Equal(t, int64(4), l2.Frames())
}
