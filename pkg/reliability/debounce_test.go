package reliability

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncedTaskCoalescesTriggers(t *testing.T) {
	var runs atomic.Int32
	task := NewDebouncedTask(30*time.Millisecond, func() {
		runs.Add(1)
	})
	defer task.Stop()

	for i := 0; i < 10; i++ {
		task.Trigger()
	}

	assert.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// A later trigger schedules a fresh run.
	task.Trigger()
	assert.Eventually(t, func() bool {
		return runs.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestDebouncedTaskStopCancelsPending(t *testing.T) {
	var runs atomic.Int32
	task := NewDebouncedTask(50*time.Millisecond, func() {
		runs.Add(1)
	})

	task.Trigger()
	task.Stop()
	task.Trigger()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}
