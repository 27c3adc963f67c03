package device

import "sync"

// Dispatcher runs queued events in order on one goroutine. The queue is
// unbounded so producers never block.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	signal chan struct{}
	done   chan struct{}
}

// NewDispatcher creates a dispatcher and starts its goroutine.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Post queues fn. It reports false if the dispatcher is closed.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	select {
	case d.signal <- struct{}{}:
	default:
	}
	d.mu.Unlock()
	return true
}

// Close stops the dispatcher after the event in progress. Queued events
// are dropped. Close is idempotent and must not be called from an event.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.queue = nil
	close(d.signal)
	d.mu.Unlock()

	<-d.done
}

// Flush blocks until every event queued before the call has run.
func (d *Dispatcher) Flush() {
	ch := make(chan struct{})
	if !d.Post(func() { close(ch) }) {
		return
	}
	select {
	case <-ch:
	case <-d.done:
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for range d.signal {
		for {
			d.mu.Lock()
			if len(d.queue) == 0 || d.closed {
				d.mu.Unlock()
				break
			}
			fn := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			d.mu.Unlock()

			fn()
		}
	}
}
