package stream

import "sync"

// Sink consumes pipeline events. Handle is called from the dispatcher
// goroutine, one event at a time, in the order events were posted.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(Event)

func (f SinkFunc) Handle(e Event) { f(e) }

// Dispatcher decouples event producers from consumers. Post never blocks:
// events queue in an unbounded mailbox and a single goroutine hands them to
// every sink in order.
type Dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	sinks   []Sink
	closed  bool
	done    chan struct{}
	started bool
}

// NewDispatcher creates a dispatcher delivering to the given sinks
func NewDispatcher(sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		sinks: sinks,
		done:  make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// AddSink registers another consumer. Sinks added after Start only see
// events delivered after the call.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Start launches the delivery goroutine. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	go d.loop()
}

// Post queues an event for delivery. Events posted after Close are dropped.
func (d *Dispatcher) Post(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending = append(d.pending, e)
	d.cond.Signal()
}

// Close delivers everything already posted and then stops the goroutine.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	started := d.started
	d.cond.Broadcast()
	d.mu.Unlock()

	if !started {
		d.Start()
	}
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.pending) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.pending) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.pending
		d.pending = nil
		sinks := append([]Sink(nil), d.sinks...)
		d.mu.Unlock()

		for _, e := range batch {
			for _, s := range sinks {
				s.Handle(e)
			}
		}
	}
}
