package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"service-auction/internal/domain"
)

// MySQLAuditRepository persists the audit trail. It doubles as an emitter.
type MySQLAuditRepository struct {
	db *sql.DB
}

func NewMySQLAuditRepository(db *sql.DB) *MySQLAuditRepository {
	return &MySQLAuditRepository{db: db}
}

func (r *MySQLAuditRepository) SaveEvent(ctx context.Context, event *domain.AuditEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO audit_events (auction_id, kind, actor, payload, occurred_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err = r.db.ExecContext(ctx, query,
		event.AuctionID, string(event.Kind), event.Actor,
		payload, event.Timestamp, time.Now().UTC())
	return err
}

func (r *MySQLAuditRepository) Emit(ctx context.Context, event *domain.AuditEvent) error {
	return r.SaveEvent(ctx, event)
}

func (r *MySQLAuditRepository) GetAuctionEvents(ctx context.Context, auctionID string) ([]*domain.AuditEvent, error) {
	query := `
        SELECT auction_id, kind, actor, payload, occurred_at
        FROM audit_events
        WHERE auction_id = ?
        ORDER BY id ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var (
			event   domain.AuditEvent
			kind    string
			payload []byte
		)

		if err := rows.Scan(&event.AuctionID, &kind, &event.Actor, &payload, &event.Timestamp); err != nil {
			return nil, err
		}

		event.Kind = domain.AuditEventKind(kind)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &event.Payload); err != nil {
				return nil, err
			}
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}
