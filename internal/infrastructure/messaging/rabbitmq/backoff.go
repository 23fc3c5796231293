package rabbitmq

import (
	"sync"
	"time"
)

// backoff produces the reconnect delays. Every read returns the current
// delay and doubles the stored one up to max, so even the first connection
// attempt waits out the starting value. Reset puts it back to min and is
// called only once a session reaches the consuming state.
type backoff struct {
	mu   sync.Mutex
	min  time.Duration
	max  time.Duration
	next time.Duration
}

func newBackoff(min, max time.Duration) *backoff {
	return &backoff{min: min, max: max, next: min}
}

func (b *backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

func (b *backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next = b.min
}
