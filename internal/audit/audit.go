// Package audit delivers aggregation decisions to an audit store without
// blocking the request that produced them.
package audit

import (
	"context"
	"log"
	"sync"
	"time"
)

// Event describes one aggregation decision.
type Event struct {
	SessionID        string    `json:"sessionId"`
	RequestedAction  string    `json:"requestedAction"`
	BusinessContext  string    `json:"businessContext"`
	TechnicalContext string    `json:"technicalContext"`
	Decision         string    `json:"decision"`
	Rationale        string    `json:"rationale"`
	RiskScore        float64   `json:"riskScore"`
	UrgencyScore     float64   `json:"urgencyScore"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Sink persists events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Recorder accepts events without blocking.
type Recorder interface {
	Emit(e Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(Event) {}

// LogSink writes events to the standard logger.
type LogSink struct{}

func (LogSink) Record(_ context.Context, e Event) error {
	log.Printf("Audit [%s] %s: %s (risk %.2f, urgency %.2f)", e.SessionID, e.Decision, e.Rationale, e.RiskScore, e.UrgencyScore)
	return nil
}

const recordTimeout = 5 * time.Second

// Dispatcher hands events to a Sink on a background goroutine. When the buffer
// is full new events are dropped.
type Dispatcher struct {
	sink   Sink
	events chan Event
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewDispatcher starts a dispatcher with the given buffer size.
func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{sink: sink, events: make(chan Event, buffer)}
	d.wg.Add(1)
	go d.run()
	return d
}

// Emit queues e for recording. It never blocks and never fails.
func (d *Dispatcher) Emit(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.events <- e:
	default:
		d.dropped++
		log.Printf("Audit buffer full, dropping event %s", e.SessionID)
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close stops accepting events and waits for queued ones to be recorded.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for e := range d.events {
		d.record(e)
	}
}

func (d *Dispatcher) record(e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Audit sink panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := d.sink.Record(ctx, e); err != nil {
		log.Printf("Failed to record audit event %s: %v", e.SessionID, err)
	}
}
