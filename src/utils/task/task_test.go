package task

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	"github.com/warp-contracts/shadowlink/src/utils/config"
)

func TestTaskLifecycle(t *testing.T) {
	conf := config.Default()

	var (
		stopped  bool
		finished bool
	)

	child := NewTask(conf, "child").
		WithSubtaskFunc(func() error {
			<-time.After(10 * time.Millisecond)
			return nil
		})

	parent := NewTask(conf, "parent").
		WithSubtask(child).
		WithOnStop(func() { stopped = true }).
		WithOnAfterStop(func() { finished = true }).
		WithPeriodicSubtaskFunc(5*time.Millisecond, func() error { return nil })

	require.NoError(t, parent.Start())
	parent.StopWait()

	require.True(t, parent.IsStopping.Load())
	require.True(t, child.IsStopping.Load())
	require.True(t, stopped)
	require.True(t, finished)

	select {
	case <-parent.CtxRunning.Done():
	default:
		t.Fatal("task still running")
	}
}

func TestRetryUntilSuccess(t *testing.T) {
	attempts := 0
	err := NewRetry().
		WithMaxElapsedTime(10 * time.Second).
		WithMaxInterval(time.Millisecond).
		Run(func() error {
			attempts++
			if attempts < 3 {
				return errors.New("not yet")
			}
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryPermanent(t *testing.T) {
	attempts := 0
	fatal := errors.New("fatal")
	err := NewRetry().
		WithMaxElapsedTime(10 * time.Second).
		WithOnError(func(err error, _ bool) error {
			return backoff.Permanent(err)
		}).
		Run(func() error {
			attempts++
			return fatal
		})
	require.ErrorIs(t, err, fatal)
	require.Equal(t, 1, attempts)
}

func TestHoleBatches(t *testing.T) {
	var (
		mtx     sync.Mutex
		batches [][]int
	)

	input := make(chan int)
	hole := NewHole[int](config.Default(), "hole").
		WithBatchSize(2).
		WithInputChannel(input).
		WithOnFlush(time.Hour, func(data []int) error {
			mtx.Lock()
			defer mtx.Unlock()
			batches = append(batches, data)
			return nil
		})
	require.NoError(t, hole.Start())

	for i := 1; i <= 3; i++ {
		input <- i
	}
	close(input)

	select {
	case <-hole.CtxRunning.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("hole didn't finish")
	}

	mtx.Lock()
	defer mtx.Unlock()
	require.Equal(t, [][]int{{1, 2}, {3}}, batches)
}
