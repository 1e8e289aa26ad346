package agent

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockSchedulerRepeatsUntilCancelled(t *testing.T) {
	var fired atomic.Int32
	cancel := ClockScheduler{}.Every(10*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	n := fired.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, fired.Load(), n+1)
}

func TestClockSchedulerCancelBeforeFire(t *testing.T) {
	var fired atomic.Int32
	cancel := ClockScheduler{}.Every(20*time.Millisecond, func() { fired.Add(1) })
	cancel()
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
