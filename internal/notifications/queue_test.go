package notifications

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushDrain(t *testing.T) {
	q := NewQueue()

	first, err := q.Push(Message{Text: "a"})
	require.NoError(t, err)
	_, err = q.Push(Message{Text: "b"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.False(t, first.EnqueuedAt.IsZero())
	assert.Equal(t, 2, q.Len())

	drained := q.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, "a", drained[0].Message.Text)
	assert.Equal(t, "b", drained[1].Message.Text)
	assert.NotEqual(t, drained[0].ID, drained[1].ID)

	assert.Empty(t, q.Drain())
	assert.Zero(t, q.Len())
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue()
	_, err := q.Push(Message{Text: "kept"})
	require.NoError(t, err)

	q.Close()

	_, err = q.Push(Message{Text: "rejected"})
	assert.ErrorIs(t, err, ErrQueueClosed)

	drained := q.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "kept", drained[0].Message.Text)
}

func TestQueue_ConcurrentPushAndDrain(t *testing.T) {
	const (
		producers   = 8
		perProducer = 500
		iterations  = 20
	)

	for iter := 0; iter < iterations; iter++ {
		q := NewQueue()
		seen := make(map[string]int)
		var seenMu sync.Mutex
		collect := func(entries []Entry) {
			seenMu.Lock()
			defer seenMu.Unlock()
			for _, e := range entries {
				seen[e.Message.Text]++
			}
		}

		var producersWG sync.WaitGroup
		for p := 0; p < producers; p++ {
			producersWG.Add(1)
			go func(p int) {
				defer producersWG.Done()
				for i := 0; i < perProducer; i++ {
					_, err := q.Push(Message{Text: fmt.Sprintf("%d-%d", p, i)})
					assert.NoError(t, err)
				}
			}(p)
		}

		done := make(chan struct{})
		var drainerWG sync.WaitGroup
		drainerWG.Add(1)
		go func() {
			defer drainerWG.Done()
			for {
				select {
				case <-done:
					return
				default:
					collect(q.Drain())
				}
			}
		}()

		producersWG.Wait()
		close(done)
		drainerWG.Wait()
		collect(q.Drain())

		require.Len(t, seen, producers*perProducer)
		for text, count := range seen {
			require.Equal(t, 1, count, "message %s drained %d times", text, count)
		}
	}
}
