package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/webhook"
)

const (
	claimEventSQL = `INSERT INTO webhook_events (id, type) VALUES ($1, $2)
	ON CONFLICT (id) DO NOTHING`

	forgetEventSQL = `DELETE FROM webhook_events WHERE id = $1`
)

var _ webhook.EventStore = (*EventRepository)(nil)

// EventRepository records processed webhook events in PostgreSQL. The
// primary key on the event id makes claims atomic across instances.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository returns an EventRepository that uses the given pool.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Claim implements webhook.EventStore.
func (r *EventRepository) Claim(ctx context.Context, eventID, eventType string) (bool, error) {
	tag, err := r.pool.Exec(ctx, claimEventSQL, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("claiming event %q: %w", eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Forget implements webhook.EventStore.
func (r *EventRepository) Forget(ctx context.Context, eventID string) error {
	if _, err := r.pool.Exec(ctx, forgetEventSQL, eventID); err != nil {
		return fmt.Errorf("forgetting event %q: %w", eventID, err)
	}
	return nil
}
