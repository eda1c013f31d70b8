package retention

import (
	"strconv"
	"sync"
	"time"
)

// TickSource issues nanosecond wall-clock ticks, bumped so that every value is
// strictly greater than the previous one even when the clock stalls or steps back.
type TickSource struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewTickSource creates a TickSource on the system clock.
func NewTickSource() *TickSource {
	return &TickSource{now: time.Now}
}

// Next returns the next tick as a decimal string.
func (s *TickSource) Next() string {
	return strconv.FormatInt(s.NextTick(), 10)
}

// NextTick returns the next tick.
func (s *TickSource) NextTick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick := s.now().UnixNano()
	if tick <= s.last {
		tick = s.last + 1
	}
	s.last = tick
	return tick
}
