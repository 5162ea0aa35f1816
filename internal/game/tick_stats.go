package game

import (
	"sync"
	"time"
)

// TickSampleSize is the number of recent ticks averaged for TPS.
const TickSampleSize = 100

// TickStats keeps a ring of the most recent tick work durations.
type TickStats struct {
	mu      sync.Mutex
	samples [TickSampleSize]int64
	next    int
	count   int
	sum     int64
}

// Record adds one tick duration, evicting the oldest once full.
func (s *TickStats) Record(d time.Duration) {
	ns := int64(d)
	if ns < 0 {
		ns = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == TickSampleSize {
		s.sum -= s.samples[s.next]
	} else {
		s.count++
	}
	s.samples[s.next] = ns
	s.sum += ns
	s.next = (s.next + 1) % TickSampleSize
}

// AverageNanos returns the mean tick duration, 0 with no samples.
func (s *TickStats) AverageNanos() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return 0
	}
	return s.sum / int64(s.count)
}

// MSPT returns the average milliseconds per tick.
func (s *TickStats) MSPT() float64 {
	return float64(s.AverageNanos()) / 1e6
}

// TPS derives ticks per second from the average tick time, capped at the
// target rate. It is 0 when nothing was sampled.
func (s *TickStats) TPS(target int) float64 {
	avg := s.AverageNanos()
	if avg <= 0 {
		return 0
	}
	tps := 1e9 / float64(avg)
	if t := float64(target); target > 0 && tps > t {
		return t
	}
	return tps
}

// Count returns the number of samples held.
func (s *TickStats) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
