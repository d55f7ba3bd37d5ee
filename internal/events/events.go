// Package events implements the bounded event bus (spec §4.7) carrying
// progress and completion notices from discovery, verification, and
// quarantine to an observer (the CLI's own printer, or a future TUI).
package events

import "sync"

// Capacity is the reference buffer size: enough to absorb brief consumer
// stalls without blocking producers under normal load.
const Capacity = 256

// Kind tags the variant carried by an Event.
type Kind int

const (
	ScanStarted Kind = iota
	CandidateFound
	VerifyProgress
	VerifyOutcome
	ScanComplete
	ScanCancelled
	QuarantineProgress
	QuarantineComplete
	ErrorEvent
)

// Event is a tagged union over the bus's payload variants. Only the fields
// relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind Kind

	Roots []string // ScanStarted

	Path    string // CandidateFound, Error (where)
	Pattern string // CandidateFound

	Done    int    // VerifyProgress, QuarantineProgress
	Total   int    // VerifyProgress, QuarantineProgress
	Current string // VerifyProgress, QuarantineProgress

	Outcome any // VerifyOutcome: report.Outcome value (declared any to avoid an import cycle)
	Report  any // ScanComplete: *report.ScanReport

	Manifest any   // QuarantineComplete
	Failed   []any // QuarantineComplete: failed entries

	Reason error // Error
}

// Bus is a bounded, multi-producer/single-consumer channel. Producers call
// Publish; exactly one consumer ranges over Events(). Closing the bus
// signals cancellation to any producer still holding a reference.
type Bus struct {
	ch chan Event

	mu     sync.Mutex
	closed bool
}

// New creates a Bus with the reference capacity.
func New() *Bus {
	return &Bus{ch: make(chan Event, Capacity)}
}

// Events returns the receive side of the bus for the single consumer.
func (b *Bus) Events() <-chan Event { return b.ch }

// Publish sends ev to the bus. Progress events (VerifyProgress,
// QuarantineProgress) are published non-blocking: under backpressure the
// sample is dropped rather than queued, since a later progress event will
// carry a more current picture anyway (spec §4.7 coalescing). Outcome and
// terminal events are never dropped — Publish blocks until there is room.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if ev.Kind == VerifyProgress || ev.Kind == QuarantineProgress {
		select {
		case b.ch <- ev:
		default:
		}
		return
	}

	b.ch <- ev // terminal / outcome events: never dropped, may block
}

// Close signals consumers that no further events will be published and
// closes the channel. Safe to call once; a second call panics like a raw
// channel close, by design — callers own exactly one Close site per run.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	close(b.ch)
}
