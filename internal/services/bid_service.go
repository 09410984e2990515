package services

import (
	"context"
	"fmt"
	"math"

	"service-auction/internal/domain"
	"service-auction/pkg/clock"
	"service-auction/pkg/logger"
)

type BidService struct {
	store     domain.AuctionStore
	limiter   domain.RateLimiter
	emitter   domain.Emitter
	scheduler domain.AuctionScheduler
	clock     clock.Clock
	limits    Limits
	policy    AntiSnipePolicy
	// excessiveBids is the advisory soft cap on total bids; zero disables it.
	excessiveBids uint32
	log           logger.Logger
}

func NewBidService(
	store domain.AuctionStore,
	limiter domain.RateLimiter,
	emitter domain.Emitter,
	scheduler domain.AuctionScheduler,
	clk clock.Clock,
	limits Limits,
	policy AntiSnipePolicy,
	excessiveBids uint32,
	log logger.Logger,
) *BidService {
	return &BidService{
		store:         store,
		limiter:       limiter,
		emitter:       emitter,
		scheduler:     scheduler,
		clock:         clk,
		limits:        limits,
		policy:        policy,
		excessiveBids: excessiveBids,
		log:           log,
	}
}

func (s *BidService) SetScheduler(scheduler domain.AuctionScheduler) {
	s.scheduler = scheduler
}

// PlaceBid applies one bid atomically: ledger entry, price, winner, counter
// and any anti-sniping extension are stored together or not at all.
func (s *BidService) PlaceBid(ctx context.Context, auctionID string, bidder domain.Identity, amount uint64) (*domain.Auction, error) {
	s.log.Info("Placing bid", "auction_id", auctionID, "bidder", bidder.ID, "amount", amount)

	if !bidder.IsSigner() {
		return nil, fmt.Errorf("%w: bidder must sign", domain.ErrUnauthorizedAccess)
	}
	if err := checkRateLimit(ctx, s.limiter, s.log, "auction:bid:"+bidder.ID); err != nil {
		return nil, err
	}

	var (
		events   []*domain.AuditEvent
		extended bool
	)

	auction, err := s.store.UpdateAuction(ctx, auctionID, func(a *domain.Auction) error {
		events, extended = nil, false
		now := s.clock.Now()

		if a.Status != domain.AuctionActive {
			return fmt.Errorf("%w: auction %s is %s", domain.ErrInvalidApplicationStatus, a.ID, a.Status)
		}
		if !now.Before(a.AuctionEndTime) {
			return fmt.Errorf("%w: auction %s has ended", domain.ErrInvalidDeadline, a.ID)
		}
		if err := s.limits.ValidatePaymentAmount(amount, "bid_amount"); err != nil {
			return err
		}
		if amount <= a.CurrentPrice {
			return fmt.Errorf("%w: bid %d not above current price %d", domain.ErrInvalidBid, amount, a.CurrentPrice)
		}
		if bidder.Matches(a.CurrentWinner) {
			return fmt.Errorf("%w: %s is already the current winner", domain.ErrUnauthorizedAccess, bidder.ID)
		}
		if bidder.Matches(a.Creator) {
			return fmt.Errorf("%w: creator cannot bid on own auction", domain.ErrUnauthorizedAccess)
		}
		minimum, ok := MinimumNextBid(a.CurrentPrice, a.MinimumBidIncrement)
		if !ok || amount < minimum {
			return fmt.Errorf("%w: bid %d below minimum %d", domain.ErrInvalidBid, amount, minimum)
		}
		if err := VerifyAuctionInvariants(amount, a.StartingPrice, a.ReservePrice, a.MinimumBidIncrement); err != nil {
			return err
		}

		if newEnd, ok := s.policy.Apply(a.AuctionEndTime, now, a.Extensions); ok {
			a.AuctionEndTime = newEnd
			a.Extensions++
			extended = true
			events = append(events, &domain.AuditEvent{
				Kind:      domain.EventAuctionExtended,
				AuctionID: a.ID,
				Actor:     bidder.ID,
				Payload: map[string]interface{}{
					"new_end_time": newEnd.Unix(),
					"extensions":   a.Extensions,
				},
				Timestamp: now,
			})
		}

		a.Bids.Append(domain.Bid{
			Bidder:    bidder.ID,
			Amount:    amount,
			Timestamp: now,
		})
		previous := a.CurrentWinner
		a.CurrentPrice = amount
		a.CurrentWinner = bidder.ID
		if a.TotalBids < math.MaxUint32 {
			a.TotalBids++
		}
		a.UpdatedAt = now

		if s.excessiveBids > 0 && a.TotalBids > s.excessiveBids {
			events = append(events, &domain.AuditEvent{
				Kind:      domain.EventExcessiveBidding,
				AuctionID: a.ID,
				Actor:     bidder.ID,
				Payload:   map[string]interface{}{"total_bids": a.TotalBids},
				Timestamp: now,
			})
		}

		payload := map[string]interface{}{
			"amount":     amount,
			"bid_number": a.TotalBids,
			"end_time":   a.AuctionEndTime.Unix(),
		}
		if previous != "" {
			payload["previous_winner"] = previous
		}
		events = append(events, &domain.AuditEvent{
			Kind:      domain.EventBidPlaced,
			AuctionID: a.ID,
			Actor:     bidder.ID,
			Payload:   payload,
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		s.log.Info("Bid rejected", "auction_id", auctionID, "bidder", bidder.ID, "amount", amount, "error", err)
		return nil, err
	}

	if extended && s.scheduler != nil {
		if err := s.scheduler.RescheduleFinalization(ctx, auction.ID, auction.AuctionEndTime); err != nil {
			s.log.Error("Failed to reschedule finalization", "auction_id", auction.ID, "error", err)
		}
	}

	emitAll(ctx, s.emitter, s.log, events...)

	return auction, nil
}
