package bus

// ForeignLoop schedules a callback to run on whatever single-threaded
// cooperative loop the façade owns (spec §4.6/§5: "single-threaded
// cooperative loop on which all façade callbacks run"). Schedule must
// never run fn synchronously on the caller's goroutine — that would
// violate the "engine code never runs on the façade's foreign loop"
// thread-affinity promise (spec §4.7).
type ForeignLoop interface {
	Schedule(fn func())
}

// GoLoop is the simplest ForeignLoop: one goroutine draining a queue of
// scheduled functions in order, serializing callbacks the way the
// teacher's bridge goroutines serialize bus sends. Used by tests and by
// embedders that don't need a real message-bus loop.
type GoLoop struct {
	fns  chan func()
	done chan struct{}
}

// NewGoLoop starts the loop's drain goroutine. Callers must call Close
// when finished.
func NewGoLoop() *GoLoop {
	l := &GoLoop{
		fns:  make(chan func(), 64),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *GoLoop) run() {
	for {
		select {
		case fn := <-l.fns:
			fn()
		case <-l.done:
			return
		}
	}
}

// Schedule enqueues fn; it blocks only if the queue is full, matching
// the bounded-channel backpressure the rest of this codebase uses
// instead of an unbounded work queue.
func (l *GoLoop) Schedule(fn func()) {
	select {
	case l.fns <- fn:
	case <-l.done:
	}
}

// Close stops the drain goroutine. Pending scheduled callbacks are
// dropped.
func (l *GoLoop) Close() {
	close(l.done)
}
