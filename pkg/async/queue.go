package async

import "sync"

// Queue runs functions one at a time, in dispatch order, on a single
// goroutine. The terminal routes every completion callback and delegate
// notification through one Queue so hosts observe a consistent callback
// context and strict ordering.
type Queue struct {
	mu     sync.Mutex
	closed bool
	jobs   chan func()
	quit   chan struct{}
	done   chan struct{}
}

// NewQueue starts the dispatch goroutine.
func NewQueue() *Queue {
	q := &Queue{
		jobs: make(chan func(), 128),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go q.loop()
	return q
}

// Dispatch enqueues fn. Calls after Close are dropped.
func (q *Queue) Dispatch(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	select {
	case q.jobs <- fn:
	case <-q.quit:
	}
}

// Close drains pending work and stops the dispatch goroutine. It is safe to
// call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.quit)
	<-q.done
}

func (q *Queue) loop() {
	for {
		select {
		case fn := <-q.jobs:
			fn()
		case <-q.quit:
			for {
				select {
				case fn := <-q.jobs:
					fn()
				default:
					close(q.done)
					return
				}
			}
		}
	}
}
