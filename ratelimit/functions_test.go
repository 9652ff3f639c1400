package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTryMakeRequestAdmitsWithinCapacity(t *testing.T) {
	l := New(500, 10000)
	assert.True(t, l.TryMakeRequest(500))
	assert.False(t, l.TryMakeRequest(1))
}

func TestGetNextRequestDelayMsZeroWhenSatisfiable(t *testing.T) {
	l := New(500, 10000)
	assert.Equal(t, 0, l.GetNextRequestDelayMs(100))
}

func TestGetNextRequestDelayMsNegativeWhenBeyondCapacity(t *testing.T) {
	l := New(500, 10000)
	assert.Equal(t, -1, l.GetNextRequestDelayMs(501))
}

func TestCapacityGrowsByScaleFactorOverTime(t *testing.T) {
	l := New(500, 10000)
	l.start = monotonicNow().Add(-scaleEvery)
	c := l.CurrentCapacity()
	assert.InDelta(t, 750, c, 0.001)
}

func TestCapacityNeverExceedsMax(t *testing.T) {
	l := New(500, 600)
	l.start = monotonicNow().Add(-10 * scaleEvery)
	assert.Equal(t, 600.0, l.CurrentCapacity())
}

func TestAvailableNeverExceedsCurrentCapacity(t *testing.T) {
	l := New(500, 10000)
	l.lastRefill = monotonicNow().Add(-time.Hour)
	l.refill(monotonicNow())
	assert.LessOrEqual(t, l.available, l.capacityAt(monotonicNow().Sub(l.start)))
}
