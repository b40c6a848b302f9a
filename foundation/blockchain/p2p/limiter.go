package p2p

import "time"

// limiter counts frames in fixed wall clock windows.
type limiter struct {
	window time.Duration
	limit  int
	start  time.Time
	count  int
	now    func() time.Time
}

func newLimiter(window time.Duration, limit int) *limiter {
	return &limiter{
		window: window,
		limit:  limit,
		now:    time.Now,
	}
}

// allow counts a frame and reports whether the window still has room.
func (l *limiter) allow() bool {
	start := l.now().Truncate(l.window)
	if !start.Equal(l.start) {
		l.start = start
		l.count = 0
	}

	l.count++
	return l.count <= l.limit
}
