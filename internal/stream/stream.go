package stream

import (
	"context"
	"sync"
	"time"
)

// TokenEvent describes one ledger happening for the live feed: a mint, a
// vote, a trade, a dispute flip, or a report.
type TokenEvent struct {
	Type       string    `json:"type"`
	TokenID    string    `json:"token_id"`
	Symbol     string    `json:"symbol,omitempty"`
	TrustScore int       `json:"trust_score,omitempty"`
	Disputed   bool      `json:"disputed,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event types carried on the feed.
const (
	EventMint    = "mint"
	EventVote    = "vote"
	EventTrade   = "trade"
	EventDispute = "dispute"
	EventReport  = "report"
)

// Stream fan-outs token events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan TokenEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan TokenEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan TokenEvent {
	ch := make(chan TokenEvent, 16)

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

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt TokenEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports the current subscriber count.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
