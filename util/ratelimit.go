package util

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrStopped means a read failed because its governing Throttle was
// stopped.
var ErrStopped = errors.New("throttle stopped")

// A Throttle caps how fast bytes move through readers wrapped by it. It
// keeps a credit pool refilled once a second; reads spend credits, and
// when the pool goes negative readers block until the next refill. One
// Throttle may govern readers on several goroutines, sharing the cap
// between them.
type Throttle struct {
	c       chan struct{} // receives when the pool is positive
	stop    chan struct{} // closed to shut down the refill goroutine
	m       sync.Mutex    // protects credits
	credits int64
}

const refillInterval = time.Second

// NewThrottle returns a Throttle allowing bytesPerSecond through. Call
// Stop when finished with it.
func NewThrottle(bytesPerSecond int64) *Throttle {
	t := &Throttle{
		c:       make(chan struct{}),
		stop:    make(chan struct{}),
		credits: bytesPerSecond,
	}
	go t.refill(bytesPerSecond)
	return t
}

// spend takes count credits. The balance may go negative.
func (t *Throttle) spend(count int64) {
	t.m.Lock()
	t.credits -= count
	t.m.Unlock()
}

// Stop shuts down the refill goroutine and releases any blocked readers
// with ErrStopped. Do not call twice.
func (t *Throttle) Stop() {
	close(t.stop)
}

func (t *Throttle) refill(amount int64) {
	tick := time.NewTicker(refillInterval)
	defer tick.Stop()
	for {
		var ready chan struct{}
		t.m.Lock()
		if t.credits > 0 {
			ready = t.c
		}
		t.m.Unlock()
		select {
		case <-tick.C:
			t.spend(-amount)
		case ready <- struct{}{}:
		case <-t.stop:
			close(t.c)
			return
		}
	}
}

// Reader wraps r so reads wait for this Throttle. A stopped Throttle
// makes further reads return ErrStopped.
func (t *Throttle) Reader(r io.Reader) io.Reader {
	return throttleReader{reader: r, t: t}
}

type throttleReader struct {
	reader io.Reader
	t      *Throttle
}

func (r throttleReader) Read(p []byte) (int, error) {
	_, ok := <-r.t.c
	if !ok {
		return 0, ErrStopped
	}
	n, err := r.reader.Read(p)
	r.t.spend(int64(n))
	return n, err
}
