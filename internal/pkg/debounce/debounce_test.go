package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerRunsOnlyAfterQuietPeriod(t *testing.T) {
	clock := NewManualClock()
	d := New(500*time.Millisecond, clock)

	var runs []string
	d.Trigger(func() { runs = append(runs, "s") })
	clock.Advance(300 * time.Millisecond)
	d.Trigger(func() { runs = append(runs, "sa") })
	clock.Advance(499 * time.Millisecond)
	assert.Empty(t, runs)
	assert.True(t, d.Pending())

	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"sa"}, runs)
	assert.False(t, d.Pending())
}

func TestDebouncerCancelAndStop(t *testing.T) {
	clock := NewManualClock()
	d := New(time.Second, clock)

	ran := 0
	d.Trigger(func() { ran++ })
	d.Cancel()
	clock.Advance(2 * time.Second)
	assert.Zero(t, ran)

	d.Stop()
	d.Trigger(func() { ran++ })
	clock.Advance(2 * time.Second)
	assert.Zero(t, ran)
	assert.Zero(t, clock.Scheduled())
}

func TestSupersededTimerThatAlreadyFiredDoesNotRun(t *testing.T) {
	clock := NewManualClock()
	d := New(time.Second, clock)

	ran := ""
	d.Trigger(func() { ran = "old" })
	// Simulate the old timer firing concurrently with a new trigger: capture
	// it before the trigger replaces it, then fire it manually.
	old := clock.timers[0]
	d.Trigger(func() { ran = "new" })
	old.fn()
	assert.Empty(t, ran)

	clock.Advance(time.Second)
	assert.Equal(t, "new", ran)
}
