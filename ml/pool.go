package ml

import (
	"sync"

	"github.com/pkg/errors"
)

// Pool is a fixed-size set of long-lived workers shared by every layer of a
// network. Enqueue hands a nullary unit of work to the pool and returns a
// Handle; Handle.Wait blocks until that unit has completed and surfaces any
// panic raised inside it. Units carry no ordering guarantee between each
// other, so they must be data-independent or externally serialized.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Handle
	closed bool
	wg     sync.WaitGroup
}

// Handle tracks one enqueued unit of work.
type Handle struct {
	fn   func()
	err  error
	done chan struct{}
}

// NewPool starts `threads` workers. Anything below 1 falls back to a single
// worker, which makes every fan-out fully serial.
func NewPool(threads int) *Pool {
	if threads < 1 {
		threads = 1
	}

	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(threads)
	for i := 0; i < threads; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		h := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		h.run()
	}
}

func (h *Handle) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			h.err = errors.Errorf("worker task panicked: %v", r)
		}
	}()
	h.fn()
}

// Enqueue queues fn for execution and returns immediately. Enqueuing after
// Close is a programming error and panics.
func (p *Pool) Enqueue(fn func()) *Handle {
	h := &Handle{fn: fn, done: make(chan struct{})}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		panic("ml: enqueue on closed pool")
	}
	p.queue = append(p.queue, h)
	p.cond.Signal()
	p.mu.Unlock()

	return h
}

// Wait blocks until the unit of work has completed. A panic inside the unit
// is returned as an error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Close drains the queue and joins all workers.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// waitAll is the fan-in barrier used after every per-neuron fan-out: every
// handle is awaited, and the first failure is reported.
func waitAll(handles []*Handle) error {
	var first error
	for _, h := range handles {
		if err := h.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
