package id

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNode_Range(t *testing.T) {
	_, err := NewNode(-1)
	assert.ErrorIs(t, err, ErrNodeRange)
	_, err = NewNode(1024)
	assert.ErrorIs(t, err, ErrNodeRange)
	_, err = NewNode(1023)
	assert.NoError(t, err)
}

func TestNext_UniqueAcrossGoroutines(t *testing.T) {
	n, err := NewNode(7)
	require.NoError(t, err)

	const workers, perWorker = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v := n.Next()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestNext_ClockRegression(t *testing.T) {
	n, err := NewNode(1)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return base }
	first := n.Next()

	n.now = func() time.Time { return base.Add(-time.Second) }
	second := n.Next()

	assert.Greater(t, second, first)
	assert.Equal(t, int64(1), (second>>nodeShift)&nodeMax)
}
