package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"service-auction/internal/domain"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// loadBids reads an auction's ledger in placement order.
func loadBids(ctx context.Context, q querier, auctionID string) (domain.BidLedger, error) {
	query := `
        SELECT bidder, amount, placed_at, is_winning
        FROM auction_bids
        WHERE auction_id = ?
        ORDER BY seq ASC
    `

	rows, err := q.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids domain.BidLedger
	for rows.Next() {
		var bid domain.Bid
		if err := rows.Scan(&bid.Bidder, &bid.Amount, &bid.Timestamp, &bid.IsWinning); err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}

	return bids, rows.Err()
}

// appendBids stores bids placed since the ledger was loaded. The previous
// winning flag is cleared first so at most one row is ever winning.
func appendBids(ctx context.Context, e execer, auctionID string, firstSeq int, bids []domain.Bid) error {
	_, err := e.ExecContext(ctx,
		`UPDATE auction_bids SET is_winning = FALSE WHERE auction_id = ? AND is_winning = TRUE`,
		auctionID)
	if err != nil {
		return err
	}

	placeholders := make([]string, 0, len(bids))
	args := make([]any, 0, len(bids)*6)
	for i, bid := range bids {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?)")
		args = append(args, auctionID, firstSeq+i, bid.Bidder, bid.Amount, bid.Timestamp, bid.IsWinning)
	}

	query := `INSERT INTO auction_bids (auction_id, seq, bidder, amount, placed_at, is_winning) VALUES ` +
		strings.Join(placeholders, ", ")
	_, err = e.ExecContext(ctx, query, args...)
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
