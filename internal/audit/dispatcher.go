package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering. A disabled config yields a nil
// Dispatcher, whose methods are no-ops.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// OnDrop, when set, observes every event lost to backpressure. It runs
	// on the emitting goroutine and must not block.
	OnDrop func(Event)
}

// Dispatcher forwards account events to a sink on a single delivery
// goroutine, preserving emission order.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event
	wg   sync.WaitGroup

	// intake guards ch against sends racing Close.
	intake sync.RWMutex
	closed bool

	dropped    atomic.Uint64
	dropMu     sync.Mutex
	dropByType map[string]uint64
}

// NewDispatcher starts the delivery goroutine.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:        cfg,
		sink:       sink,
		ch:         make(chan Event, cfg.BufferSize),
		dropByType: make(map[string]uint64),
	}

	d.wg.Add(1)
	go d.deliver()

	return d
}

// deliver exits once Close has closed ch and every buffered event is out.
func (d *Dispatcher) deliver() {
	defer d.wg.Done()
	for event := range d.ch {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event. Events emitted after Close are ignored. Without
// DropIfFull, Emit waits for buffer space until ctx is done.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.intake.RLock()
	defer d.intake.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.drop(event)
	}
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	d.dropMu.Lock()
	d.dropByType[event.EventType]++
	d.dropMu.Unlock()
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(event)
	}
}

// Close stops intake, flushes buffered events and waits for delivery to
// finish. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.intake.Lock()
	if d.closed {
		d.intake.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.intake.Unlock()

	d.wg.Wait()
}

// Dropped reports the total number of events lost to backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByType breaks Dropped down by event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	out := map[string]uint64{}
	if d == nil {
		return out
	}
	d.dropMu.Lock()
	for k, v := range d.dropByType {
		out[k] = v
	}
	d.dropMu.Unlock()
	return out
}
