package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"service-auction/internal/domain"
	"service-auction/pkg/utils"

	driver "github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

const auctionColumns = `id, agent, creator, auction_type, terms, starting_price, reserve_price,
        minimum_bid_increment, current_price, current_winner, auction_end_time, extensions,
        total_bids, status, winner, failure_reason, created_at, ended_at, updated_at`

// MySQLAuctionRepository stores auctions in the auctions table and their bid
// ledgers in auction_bids. Updates hold a row lock on the auction for the
// whole read-mutate-write cycle.
type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	id := utils.AuctionID(auction.Agent, auction.Creator)

	terms, err := json.Marshal(auction.Terms)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = r.db.ExecContext(ctx, query,
		id, auction.Agent, auction.Creator, int(auction.AuctionType), terms,
		auction.StartingPrice, auction.ReservePrice, auction.MinimumBidIncrement,
		auction.CurrentPrice, auction.CurrentWinner, auction.AuctionEndTime, auction.Extensions,
		auction.TotalBids, int(auction.Status), auction.Winner, auction.FailureReason,
		auction.CreatedAt, nullTime(auction.EndedAt), auction.UpdatedAt)
	if err != nil {
		var mysqlErr *driver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry {
			return fmt.Errorf("%w: %s", domain.ErrAuctionExists, id)
		}
		return err
	}

	auction.ID = id
	return nil
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		return nil, notFound(err, auctionID)
	}

	if auction.Bids, err = loadBids(ctx, r.db, auctionID); err != nil {
		return nil, err
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) UpdateAuction(ctx context.Context, auctionID string, mutate domain.AuctionMutation) (*domain.Auction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ? FOR UPDATE`
	auction, err := scanAuction(tx.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		return nil, notFound(err, auctionID)
	}
	if auction.Bids, err = loadBids(ctx, tx, auctionID); err != nil {
		return nil, err
	}
	stored := len(auction.Bids)

	if err := mutate(auction); err != nil {
		return nil, err
	}

	if len(auction.Bids) > stored {
		if err := appendBids(ctx, tx, auctionID, stored, auction.Bids[stored:]); err != nil {
			return nil, err
		}
	}

	update := `
        UPDATE auctions
        SET current_price = ?, current_winner = ?, auction_end_time = ?, extensions = ?,
            total_bids = ?, status = ?, winner = ?, failure_reason = ?, ended_at = ?, updated_at = ?
        WHERE id = ?
    `
	_, err = tx.ExecContext(ctx, update,
		auction.CurrentPrice, auction.CurrentWinner, auction.AuctionEndTime, auction.Extensions,
		auction.TotalBids, int(auction.Status), auction.Winner, auction.FailureReason,
		nullTime(auction.EndedAt), auction.UpdatedAt, auctionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return auction, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		auction     domain.Auction
		auctionType int
		status      int
		terms       []byte
		endedAt     sql.NullTime
	)

	err := row.Scan(
		&auction.ID, &auction.Agent, &auction.Creator, &auctionType, &terms,
		&auction.StartingPrice, &auction.ReservePrice, &auction.MinimumBidIncrement,
		&auction.CurrentPrice, &auction.CurrentWinner, &auction.AuctionEndTime, &auction.Extensions,
		&auction.TotalBids, &status, &auction.Winner, &auction.FailureReason,
		&auction.CreatedAt, &endedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(terms) > 0 {
		if err := json.Unmarshal(terms, &auction.Terms); err != nil {
			return nil, fmt.Errorf("decode terms of auction %s: %w", auction.ID, err)
		}
	}
	auction.AuctionType = domain.AuctionType(auctionType)
	auction.Status = domain.AuctionStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		auction.EndedAt = &t
	}
	return &auction, nil
}

func notFound(err error, auctionID string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auctionID)
	}
	return err
}
