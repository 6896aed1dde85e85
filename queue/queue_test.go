package queue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/queue"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsJobsInOrder(t *testing.T) {
	q := queue.New(8, nil)
	go func() { _ = q.Run() }()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, q.Enqueue(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()
	q.Close()

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueueAliveUntilClosed(t *testing.T) {
	q := queue.New(2, nil)
	require.True(t, q.Alive())
	go func() { _ = q.Run() }()
	q.Close()
	require.False(t, q.Alive())
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := queue.New(2, nil)
	go func() { _ = q.Run() }()
	q.Close()

	err := q.Enqueue(func() {})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeServiceNeedsRestart))
}

func TestQueueDrainsBacklogBeforeClosing(t *testing.T) {
	q := queue.New(4, nil)
	ran := make(chan int, 4)
	for i := 0; i < 4; i++ {
		i := i
		require.NoError(t, q.Enqueue(func() {
			time.Sleep(time.Millisecond)
			ran <- i
		}))
	}
	go func() { _ = q.Run() }()
	q.Close()
	close(ran)

	var count int
	for range ran {
		count++
	}
	require.Equal(t, 4, count)
}
