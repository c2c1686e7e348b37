package memory

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/webhook"
)

// DefaultEventRetention covers Stripe's redelivery window of three days.
const DefaultEventRetention = 72 * time.Hour

var _ webhook.EventStore = (*EventStore)(nil)

type claim struct {
	eventType string
	claimedAt time.Time
}

// EventStore remembers processed webhook event ids. Claims older than the
// processor's redelivery window are dropped by Expire.
type EventStore struct {
	mu     sync.Mutex
	claims map[string]claim
	now    func() time.Time
}

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{claims: make(map[string]claim), now: time.Now}
}

// Claim implements webhook.EventStore.
func (s *EventStore) Claim(_ context.Context, eventID, eventType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[eventID]; ok {
		return false, nil
	}
	s.claims[eventID] = claim{eventType: eventType, claimedAt: s.now()}
	return true, nil
}

// Forget implements webhook.EventStore.
func (s *EventStore) Forget(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claims, eventID)
	return nil
}

// Len returns the number of claimed events.
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

// Expire drops claims made before cutoff and returns how many were dropped.
func (s *EventStore) Expire(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, c := range s.claims {
		if c.claimedAt.Before(cutoff) {
			delete(s.claims, id)
			n++
		}
	}
	return n
}

// Run expires claims older than retention every interval until ctx is
// cancelled.
func (s *EventStore) Run(ctx context.Context, interval, retention time.Duration) {
	lg := zctx.From(ctx).Named("events")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Expire(s.now().Add(-retention)); n > 0 {
				lg.Debug("Expired processed events", zap.Int("count", n))
			}
		}
	}
}
