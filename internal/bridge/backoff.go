package bridge

import "time"

// Poll schedule defaults. Most executions that will succeed do so within
// the first few seconds, so polling stays tight early and backs off once
// a longer wait is apparent.
const (
	defaultFastInterval = 250 * time.Millisecond
	defaultFastWindow   = 5 * time.Second
	defaultMaxInterval  = 3 * time.Second
	backoffFactor       = 1.5
)

// backoff yields the wait between result-poll attempts: a fixed short
// interval while elapsed time is inside the fast window, then
// exponentially growing intervals capped at max.
type backoff struct {
	fastInterval time.Duration
	fastWindow   time.Duration
	maxInterval  time.Duration

	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{
		fastInterval: defaultFastInterval,
		fastWindow:   defaultFastWindow,
		maxInterval:  defaultMaxInterval,
	}
}

// next returns the interval to sleep given how long polling has been
// running so far.
func (b *backoff) next(elapsed time.Duration) time.Duration {
	if elapsed < b.fastWindow {
		b.current = b.fastInterval
		return b.fastInterval
	}
	if b.current < b.fastInterval {
		b.current = b.fastInterval
	}
	b.current = time.Duration(float64(b.current) * backoffFactor)
	if b.current > b.maxInterval {
		b.current = b.maxInterval
	}
	return b.current
}
