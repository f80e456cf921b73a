package technostore

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names a store notification.
type EventKind string

const (
	EventProductAdded    EventKind = "ProductAdded"
	EventProductBought   EventKind = "ProductBought"
	EventProductRefunded EventKind = "ProductRefunded"
)

// Event is an append-only store notification. Seq starts at 1 and has no gaps.
// Quantity is set for ProductAdded only; Buyer is zero for ProductAdded.
type Event struct {
	Seq      uint64         `json:"seq"`
	Height   uint64         `json:"height"`
	Kind     EventKind      `json:"kind"`
	Product  string         `json:"product"`
	Buyer    common.Address `json:"buyer"`
	Quantity uint64         `json:"quantity,omitempty"`
}

const subscriberBuffer = 64

// eventLog keeps every emitted event and fans new ones out to subscribers.
// A subscriber that falls subscriberBuffer events behind is dropped and its
// channel closed; it can catch up with Events(seq).
type eventLog struct {
	mu          sync.RWMutex
	events      []Event
	subscribers map[chan Event]struct{}
}

func newEventLog() *eventLog {
	return &eventLog{subscribers: make(map[chan Event]struct{})}
}

func (l *eventLog) emit(e Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Seq = uint64(len(l.events)) + 1
	l.events = append(l.events, e)

	for ch := range l.subscribers {
		select {
		case ch <- e:
		default:
			delete(l.subscribers, ch)
			close(ch)
		}
	}
	return e
}

func (l *eventLog) since(from uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if from == 0 {
		from = 1
	}
	if from > uint64(len(l.events)) {
		return []Event{}
	}
	out := make([]Event, len(l.events)-int(from-1))
	copy(out, l.events[from-1:])
	return out
}

func (l *eventLog) subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, ok := l.subscribers[ch]; ok {
			delete(l.subscribers, ch)
			close(ch)
		}
	}()
	return ch
}

func (l *eventLog) restore(events []Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append([]Event(nil), events...)
}

func (l *eventLog) len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.events))
}

// Events returns every event with Seq >= from, oldest first.
func (s *Store) Events(from uint64) []Event {
	return s.events.since(from)
}

// LastEventSeq returns the sequence number of the newest event, 0 if none.
func (s *Store) LastEventSeq() uint64 {
	return s.events.len()
}

// Subscribe returns a channel that receives events emitted after the call.
// The channel is closed when ctx ends or the subscriber falls too far behind.
func (s *Store) Subscribe(ctx context.Context) <-chan Event {
	return s.events.subscribe(ctx)
}

func (s *Store) emit(kind EventKind, product string, buyer common.Address, quantity uint64) Event {
	return s.events.emit(Event{
		Height:   s.clock.Height(),
		Kind:     kind,
		Product:  product,
		Buyer:    buyer,
		Quantity: quantity,
	})
}
