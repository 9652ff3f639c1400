package ratelimit

import (
	"math"
	"time"
)

// capacityAt returns the bucket's capacity (ops/sec) at elapsed duration
// since the limiter started: initial * 1.5^floor(elapsed/300s), capped at
// max.
func (l *Limiter) capacityAt(elapsed time.Duration) float64 {
	steps := math.Floor(float64(elapsed) / float64(scaleEvery))
	c := l.initial * math.Pow(scaleFactor, steps)
	if c > l.max {
		return l.max
	}
	return c
}

// refill tops up available tokens for time elapsed since the last refill,
// at the capacity in effect over that interval, then clamps to the current
// capacity. Must be called with l.mu held.
func (l *Limiter) refill(now time.Time) float64 {
	capacity := l.capacityAt(now.Sub(l.start))
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.available += elapsed * capacity
		if l.available > capacity {
			l.available = capacity
		}
		l.lastRefill = now
	}
	return capacity
}

// TryMakeRequest refills, then admits n tokens if available, returning
// whether the request may proceed.
func (l *Limiter) TryMakeRequest(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(monotonicNow())
	if float64(n) <= l.available {
		l.available -= float64(n)
		return true
	}
	return false
}

// GetNextRequestDelayMs returns 0 if n is already satisfiable, -1 if n
// exceeds the current capacity (it will never succeed without the bucket
// growing further), else the number of milliseconds until n tokens will be
// available.
func (l *Limiter) GetNextRequestDelayMs(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	capacity := l.refill(monotonicNow())
	if float64(n) <= l.available {
		return 0
	}
	if float64(n) > capacity {
		return -1
	}
	deficit := float64(n) - l.available
	return int(math.Ceil(1000 * deficit / capacity))
}

// CurrentCapacity reports the bucket's capacity at this instant, for tests
// and diagnostics.
func (l *Limiter) CurrentCapacity() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capacityAt(monotonicNow().Sub(l.start))
}
