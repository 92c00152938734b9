package connection

import "time"

// reconnectPolicy computes exponential backoff delays for reconnect
// attempts. All methods must be called with the manager's lock held.
type reconnectPolicy struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int
	attempt     int
}

func newReconnectPolicy(base, max time.Duration, maxAttempts int) *reconnectPolicy {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &reconnectPolicy{base: base, max: max, maxAttempts: maxAttempts}
}

// exhausted reports whether the attempt budget has been spent.
// A maxAttempts of zero means retry forever.
func (p *reconnectPolicy) exhausted() bool {
	return p.maxAttempts > 0 && p.attempt >= p.maxAttempts
}

// nextDelay returns min(base * 2^attempt, max) and advances the attempt
// counter.
func (p *reconnectPolicy) nextDelay() time.Duration {
	delay := p.delayFor(p.attempt)
	p.attempt++
	return delay
}

// delayFor returns the backoff delay for a given attempt number without
// advancing the counter.
func (p *reconnectPolicy) delayFor(attempt int) time.Duration {
	delay := p.base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.max || delay <= 0 {
			return p.max
		}
	}
	if delay > p.max {
		return p.max
	}
	return delay
}

// reset clears the attempt counter; called on reaching Connected.
func (p *reconnectPolicy) reset() {
	p.attempt = 0
}
