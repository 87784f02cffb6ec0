package stream

import (
	"context"
	"sync"
	"time"

	"bankmesh.org/internal/ledger"
)

// TransferEvent is the public view of one posted journal entry.
type TransferEvent struct {
	ID        string          `json:"id"`
	Sequence  uint64          `json:"sequence"`
	Kind      ledger.Kind     `json:"kind"`
	From      ledger.Endpoint `json:"from"`
	To        ledger.Endpoint `json:"to"`
	Amount    ledger.Money    `json:"amount"`
	Display   string          `json:"display"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventFromTransaction converts a journal entry to a stream event.
func EventFromTransaction(tx ledger.Transaction) TransferEvent {
	return TransferEvent{
		ID:        tx.ID,
		Sequence:  tx.Sequence,
		Kind:      tx.Kind,
		From:      tx.Src,
		To:        tx.Dst,
		Amount:    tx.Amount,
		Display:   tx.Amount.String(),
		Timestamp: tx.PostedAt,
	}
}

// Stream fan-outs transfer events to all active subscribers (SSE clients,
// the broker forwarder).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan TransferEvent
	next int
}

func New() *Stream {
	return &Stream{subs: make(map[int]chan TransferEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan TransferEvent {
	ch := make(chan TransferEvent, 64)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish implements the engine's publisher hook. It never blocks; slow
// subscribers miss events.
func (s *Stream) Publish(tx ledger.Transaction) {
	evt := EventFromTransaction(tx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers reports the number of active subscriptions.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
