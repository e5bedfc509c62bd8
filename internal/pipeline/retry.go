package pipeline

import "time"

// Policy decides whether a failed attempt gets retried and how long to wait
// first. It is pure: callers own the sleeping, so tests never wait.
type Policy struct {
	MaxAttempts int           // total attempts including the first; <=0 means 1
	BaseDelay   time.Duration // delay before attempt 2; doubles per attempt
	MaxDelay    time.Duration // cap, 0 = uncapped
}

// Next reports the delay to apply before the attempt after `attempt`
// (1-based), and whether another attempt is allowed at all.
func (p Policy) Next(attempt int) (time.Duration, bool) {
	max := p.MaxAttempts
	if max <= 0 {
		max = 1
	}
	if attempt >= max {
		return 0, false
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d, true
}
