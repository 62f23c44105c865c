package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Task_Start_RunsBody(t *testing.T) {
	var ticks int64
	task := New(func(stop <-chan struct{}) {
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
				atomic.AddInt64(&ticks, 1)
			}
		}
	})
	task.Start()
	defer task.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&ticks) > 0
	}, time.Second, 5*time.Millisecond)
}

func Test_Task_Suspend_StopsBodyUntilResumed(t *testing.T) {
	var ticks int64
	task := New(func(stop <-chan struct{}) {
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
				atomic.AddInt64(&ticks, 1)
			}
		}
	})
	task.Start()
	defer task.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&ticks) > 0
	}, time.Second, 5*time.Millisecond)

	task.Suspend()
	time.Sleep(20 * time.Millisecond)
	frozen := atomic.LoadInt64(&ticks)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, atomic.LoadInt64(&ticks), "body must not advance while suspended")

	task.Resume()
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&ticks) > frozen
	}, time.Second, 5*time.Millisecond)
}

func Test_Task_Stop_IsIdempotentAndBlocksUntilExit(t *testing.T) {
	task := New(func(stop <-chan struct{}) { <-stop })
	task.Start()
	task.Stop()
	task.Stop() // no panic, no double-close
}

func Test_Task_Suspend_NoopBeforeStart(t *testing.T) {
	task := New(func(stop <-chan struct{}) { <-stop })
	task.Suspend()
	task.Resume()
	task.Stop()
}
