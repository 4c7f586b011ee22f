package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestScheduler_FiresAfterDelay(t *testing.T) {
	clk := clockwork.NewFakeClock()
	s := NewScheduler(clk)
	defer s.Stop()

	var fired atomic.Int32
	s.Schedule("room-1", 30*time.Second, func() { fired.Add(1) })

	clk.Advance(29 * time.Second)
	time.Sleep(10 * time.Millisecond)
	require.EqualValues(t, 0, fired.Load())

	clk.Advance(time.Second)
	waitFor(t, func() bool { return fired.Load() == 1 })
}

func TestScheduler_ScheduleReplacesPendingTimer(t *testing.T) {
	clk := clockwork.NewFakeClock()
	s := NewScheduler(clk)
	defer s.Stop()

	var first, second atomic.Int32
	s.Schedule("room-1", 10*time.Second, func() { first.Add(1) })
	s.Schedule("room-1", 20*time.Second, func() { second.Add(1) })

	clk.Advance(15 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 0, first.Load(), "replaced timer must not fire")

	clk.Advance(5 * time.Second)
	waitFor(t, func() bool { return second.Load() == 1 })
	assert.EqualValues(t, 0, first.Load())
}

func TestScheduler_CancelIsIdempotent(t *testing.T) {
	clk := clockwork.NewFakeClock()
	s := NewScheduler(clk)
	defer s.Stop()

	var fired atomic.Int32
	s.Schedule("room-1", time.Second, func() { fired.Add(1) })

	s.Cancel("room-1")
	s.Cancel("room-1")
	s.Cancel("never-scheduled")

	clk.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 0, fired.Load())
}

func TestScheduler_CancelAfterFireIsSafe(t *testing.T) {
	clk := clockwork.NewFakeClock()
	s := NewScheduler(clk)
	defer s.Stop()

	var fired atomic.Int32
	s.Schedule("room-1", time.Second, func() { fired.Add(1) })

	clk.Advance(time.Second)
	waitFor(t, func() bool { return fired.Load() == 1 })

	s.Cancel("room-1")
	assert.EqualValues(t, 1, fired.Load())
}

func TestScheduler_IndependentKeys(t *testing.T) {
	clk := clockwork.NewFakeClock()
	s := NewScheduler(clk)
	defer s.Stop()

	var a, b atomic.Int32
	s.Schedule("room-a", time.Second, func() { a.Add(1) })
	s.Schedule("room-b", 2*time.Second, func() { b.Add(1) })
	s.Cancel("room-a")

	clk.Advance(5 * time.Second)
	waitFor(t, func() bool { return b.Load() == 1 })
	assert.EqualValues(t, 0, a.Load())
}

func TestScheduler_StopRejectsNewWork(t *testing.T) {
	clk := clockwork.NewFakeClock()
	s := NewScheduler(clk)

	var fired atomic.Int32
	s.Schedule("room-1", time.Second, func() { fired.Add(1) })
	s.Stop()
	s.Schedule("room-2", time.Second, func() { fired.Add(1) })

	clk.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 0, fired.Load())
}
