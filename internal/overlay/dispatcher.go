package overlay

import "sync"

// Dispatcher runs posted functions one at a time, in posting order, on its
// own goroutine. Post never blocks.
type Dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewDispatcher starts the dispatch goroutine.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// Post queues fn. Work posted after Close is dropped.
func (d *Dispatcher) Post(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
}

// Drain blocks until everything posted before the call has run.
func (d *Dispatcher) Drain() {
	ch := make(chan struct{})
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.queue = append(d.queue, func() { close(ch) })
	d.cond.Signal()
	d.mu.Unlock()
	<-ch
}

// Close runs the remaining queue and stops the goroutine.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.cond.Signal()
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}
