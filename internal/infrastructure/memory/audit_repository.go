package memory

import (
	"context"
	"sync"

	"service-auction/internal/domain"
)

// AuditRepository records audit events in arrival order. It also satisfies
// domain.Emitter so it can sit directly behind the services.
type AuditRepository struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) SaveEvent(_ context.Context, event *domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *AuditRepository) Emit(ctx context.Context, event *domain.AuditEvent) error {
	return r.SaveEvent(ctx, event)
}

func (r *AuditRepository) GetAuctionEvents(_ context.Context, auctionID string) ([]*domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.AuditEvent
	for _, e := range r.events {
		if e.AuctionID == auctionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Kinds lists the kinds of every recorded event, in order.
func (r *AuditRepository) Kinds() []domain.AuditEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]domain.AuditEventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
