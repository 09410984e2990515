// Package memory holds single-process implementations of the storage
// collaborators. They back tests and the "memory" store driver.
package memory

import (
	"context"
	"fmt"
	"sync"

	"service-auction/internal/domain"
	"service-auction/pkg/utils"
)

type entry struct {
	mu      sync.Mutex
	auction *domain.Auction
}

// AuctionStore keeps auctions in a map. Each auction has its own lock, so
// updates of one auction are serialized while different auctions proceed in
// parallel.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]*entry
}

func NewAuctionStore() *AuctionStore {
	return &AuctionStore{auctions: make(map[string]*entry)}
}

func (s *AuctionStore) CreateAuction(_ context.Context, auction *domain.Auction) error {
	id := utils.AuctionID(auction.Agent, auction.Creator)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[id]; exists {
		return fmt.Errorf("%w: %s", domain.ErrAuctionExists, id)
	}
	auction.ID = id
	s.auctions[id] = &entry{auction: auction.Clone()}
	return nil
}

func (s *AuctionStore) GetAuction(_ context.Context, auctionID string) (*domain.Auction, error) {
	e, err := s.lookup(auctionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.auction.Clone(), nil
}

func (s *AuctionStore) UpdateAuction(ctx context.Context, auctionID string, mutate domain.AuctionMutation) (*domain.Auction, error) {
	e, err := s.lookup(auctionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working := e.auction.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	e.auction = working
	return working.Clone(), nil
}

func (s *AuctionStore) lookup(auctionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auctionID)
	}
	return e, nil
}
