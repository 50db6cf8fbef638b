package analytics

import (
	"log"
	"sync"
	"time"
)

// Event is one conversation fact worth recording: a served turn, a degraded
// turn, a rejected request.
type Event struct {
	Type      string
	ClientIP  string
	Detail    string
	Timestamp time.Time
}

// Sink receives events. Failures are the dispatcher's problem, never the
// request's.
type Sink interface {
	Record(event Event) error
}

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Record(event Event) error {
	log.Printf("[analytics] type=%s ip=%s detail=%s", event.Type, event.ClientIP, event.Detail)
	return nil
}

// Dispatcher decouples event recording from request handling. Dispatch never
// blocks: when the buffer is full the event is dropped and counted.
type Dispatcher struct {
	events  chan Event
	sink    Sink
	dropped int
	mu      sync.Mutex
	done    chan struct{}
}

// NewDispatcher starts the background worker.
func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		events: make(chan Event, buffer),
		sink:   sink,
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch queues an event without blocking the caller.
func (d *Dispatcher) Dispatch(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case d.events <- event:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
	}
}

// Dropped reports how many events were discarded on a full buffer.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close drains pending events and stops the worker.
func (d *Dispatcher) Close() {
	close(d.events)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.events {
		if err := d.sink.Record(event); err != nil {
			log.Printf("[analytics] sink failed: %v", err)
		}
	}
}
