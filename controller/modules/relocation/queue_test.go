package relocation

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reef-pi/farmer/controller/storage"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	store, err := storage.NewBolt(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.CreateBucket(QueueBucket))
	return NewQueue(store)
}

func TestQueue_FIFOAndOverlap(t *testing.T) {
	q := newTestQueue(t)
	clock := time.Unix(100, 0)
	q.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	_, err := q.Add(4, 5)
	require.NoError(t, err)
	_, err = q.Add(0, 1)
	require.NoError(t, err)
	_, err = q.Add(5, 6)
	assert.ErrorIs(t, err, ErrQueued)
	_, err = q.Add(7, 1)
	assert.ErrorIs(t, err, ErrQueued)

	reqs, err := q.List()
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, 4, reqs[0].From)
	assert.Equal(t, 0, reqs[1].From)
}

func TestQueue_Remove(t *testing.T) {
	q := newTestQueue(t)
	r, err := q.Add(0, 1)
	require.NoError(t, err)

	require.NoError(t, q.Remove(r.ID))
	assert.ErrorIs(t, q.Remove(r.ID), ErrRequestNotFound)

	reqs, err := q.List()
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestQueue_ProcessInOrderUntilClosed(t *testing.T) {
	q := newTestQueue(t)
	for _, mv := range [][2]int{{0, 1}, {2, 3}, {4, 5}} {
		_, err := q.Add(mv[0], mv[1])
		require.NoError(t, err)
	}

	var mu sync.Mutex
	var seen []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Process(func(r Request) {
			// a running request blocks overlapping additions
			_, err := q.Add(r.To, 9)
			assert.ErrorIs(t, err, ErrQueued)
			mu.Lock()
			seen = append(seen, r.From)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, 2*time.Second, 10*time.Millisecond)

	q.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not return after Close")
	}
	assert.Equal(t, []int{0, 2, 4}, seen)
}
