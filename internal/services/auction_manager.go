package services

import (
	"context"
	"fmt"
	"time"

	"service-auction/internal/domain"
	"service-auction/pkg/clock"
	"service-auction/pkg/logger"
)

type CreateAuctionParams struct {
	Agent               string
	Terms               domain.ServiceTerms
	AuctionType         domain.AuctionType
	StartingPrice       uint64
	ReservePrice        uint64
	MinimumBidIncrement uint64
	AuctionEndTime      time.Time
}

// AuctionManager owns auction creation and finalization. Bids go through
// BidService.
type AuctionManager struct {
	store      domain.AuctionStore
	directory  domain.AgentDirectory
	authorizer domain.Authorizer
	limiter    domain.RateLimiter
	emitter    domain.Emitter
	scheduler  domain.AuctionScheduler
	clock      clock.Clock
	limits     Limits
	log        logger.Logger
}

func NewAuctionManager(
	store domain.AuctionStore,
	directory domain.AgentDirectory,
	authorizer domain.Authorizer,
	limiter domain.RateLimiter,
	emitter domain.Emitter,
	scheduler domain.AuctionScheduler,
	clk clock.Clock,
	limits Limits,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		store:      store,
		directory:  directory,
		authorizer: authorizer,
		limiter:    limiter,
		emitter:    emitter,
		scheduler:  scheduler,
		clock:      clk,
		limits:     limits,
		log:        log,
	}
}

func (am *AuctionManager) SetScheduler(scheduler domain.AuctionScheduler) {
	am.scheduler = scheduler
}

func (am *AuctionManager) CreateAuction(ctx context.Context, caller domain.Identity, p CreateAuctionParams) (*domain.Auction, error) {
	if !caller.IsSigner() {
		return nil, fmt.Errorf("%w: creator must sign", domain.ErrUnauthorizedAccess)
	}
	if err := checkRateLimit(ctx, am.limiter, am.log, "auction:create:"+caller.ID); err != nil {
		return nil, err
	}

	now := am.clock.Now()

	if err := am.limits.ValidatePaymentAmount(p.StartingPrice, "starting_price"); err != nil {
		return nil, err
	}
	// Zero reserve means no reserve and is not a payment amount.
	if p.ReservePrice != 0 {
		if err := am.limits.ValidatePaymentAmount(p.ReservePrice, "reserve_price"); err != nil {
			return nil, err
		}
	}
	if err := am.limits.ValidateBidIncrement(p.MinimumBidIncrement, p.StartingPrice); err != nil {
		return nil, err
	}
	if err := am.limits.ValidateDuration(p.AuctionEndTime, now); err != nil {
		return nil, err
	}
	if err := VerifyAuctionInvariants(p.StartingPrice, p.StartingPrice, p.ReservePrice, p.MinimumBidIncrement); err != nil {
		return nil, err
	}

	agent, err := am.directory.GetAgent(ctx, p.Agent)
	if err != nil {
		return nil, err
	}
	if !agent.IsActive {
		return nil, fmt.Errorf("%w: agent %s", domain.ErrAgentNotActive, p.Agent)
	}
	if !caller.Matches(agent.Owner) {
		return nil, fmt.Errorf("%w: %s does not own agent %s", domain.ErrUnauthorizedAccess, caller.ID, p.Agent)
	}

	auction := &domain.Auction{
		Agent:               p.Agent,
		Creator:             caller.ID,
		AuctionType:         p.AuctionType,
		Terms:               p.Terms,
		StartingPrice:       p.StartingPrice,
		ReservePrice:        p.ReservePrice,
		MinimumBidIncrement: p.MinimumBidIncrement,
		CurrentPrice:        p.StartingPrice,
		AuctionEndTime:      p.AuctionEndTime,
		Status:              domain.AuctionActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := am.store.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}

	if am.scheduler != nil {
		if err := am.scheduler.ScheduleFinalization(ctx, auction.ID, auction.AuctionEndTime); err != nil {
			am.log.Error("Failed to schedule finalization", "auction_id", auction.ID, "error", err)
		}
	}

	emitAll(ctx, am.emitter, am.log, &domain.AuditEvent{
		Kind:      domain.EventAuctionCreated,
		AuctionID: auction.ID,
		Actor:     caller.ID,
		Payload: map[string]interface{}{
			"agent":          auction.Agent,
			"creator":        auction.Creator,
			"auction_type":   auction.AuctionType.String(),
			"starting_price": auction.StartingPrice,
			"reserve_price":  auction.ReservePrice,
			"end_time":       auction.AuctionEndTime.Unix(),
		},
		Timestamp: now,
	})

	am.log.Info("Auction created", "auction_id", auction.ID, "agent", auction.Agent, "creator", auction.Creator)
	return auction, nil
}

// FinalizeAuction resolves an ended auction to Settled or Cancelled. An
// invariant failure leaves the auction Active so the call can be retried.
func (am *AuctionManager) FinalizeAuction(ctx context.Context, auctionID string, caller domain.Identity) (*domain.Auction, error) {
	if !caller.IsSigner() {
		return nil, fmt.Errorf("%w: caller must sign", domain.ErrUnauthorizedAccess)
	}

	var events []*domain.AuditEvent

	auction, err := am.store.UpdateAuction(ctx, auctionID, func(a *domain.Auction) error {
		events = nil
		now := am.clock.Now()

		if !caller.Matches(a.Creator) && !am.authorizer.IsProtocolAuthority(caller) {
			return fmt.Errorf("%w: %s may not finalize auction %s", domain.ErrUnauthorizedAccess, caller.ID, a.ID)
		}
		if now.Before(a.AuctionEndTime) {
			return fmt.Errorf("%w: auction %s ends at %s", domain.ErrInvalidDeadline, a.ID, a.AuctionEndTime.Format(time.RFC3339))
		}
		if a.Status != domain.AuctionActive {
			return fmt.Errorf("%w: auction %s is %s", domain.ErrInvalidApplicationStatus, a.ID, a.Status)
		}

		if !a.HasWinner() {
			a.Status = domain.AuctionCancelled
			a.FailureReason = domain.ReasonNoBids
			events = append(events, &domain.AuditEvent{
				Kind:      domain.EventAuctionFailedNoBids,
				AuctionID: a.ID,
				Actor:     a.Creator,
				Payload:   map[string]interface{}{"reason": domain.ReasonNoBids},
				Timestamp: now,
			})
		} else {
			if err := VerifyAuctionInvariants(a.CurrentPrice, a.StartingPrice, a.ReservePrice, a.MinimumBidIncrement); err != nil {
				return err
			}
			if err := VerifyLedgerConsistency(a); err != nil {
				return err
			}

			if a.ReservePrice == 0 || a.CurrentPrice >= a.ReservePrice {
				a.Status = domain.AuctionSettled
				a.Winner = a.CurrentWinner
				events = append(events, &domain.AuditEvent{
					Kind:      domain.EventAuctionFinalized,
					AuctionID: a.ID,
					Actor:     a.Winner,
					Payload: map[string]interface{}{
						"winner":      a.Winner,
						"winning_bid": a.CurrentPrice,
						"total_bids":  a.TotalBids,
					},
					Timestamp: now,
				})
			} else {
				a.Status = domain.AuctionCancelled
				a.FailureReason = domain.ReasonReserveNotMet
				events = append(events, &domain.AuditEvent{
					Kind:      domain.EventAuctionFailedReserve,
					AuctionID: a.ID,
					Actor:     a.Creator,
					Payload: map[string]interface{}{
						"reason":      domain.ReasonReserveNotMet,
						"highest_bid": a.CurrentPrice,
						"reserve":     a.ReservePrice,
					},
					Timestamp: now,
				})
			}
		}

		a.EndedAt = &now
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		am.log.Warn("Finalization rejected", "auction_id", auctionID, "caller", caller.ID, "error", err)
		return nil, err
	}

	if am.scheduler != nil {
		if err := am.scheduler.CancelSchedule(ctx, auction.ID); err != nil {
			am.log.Error("Failed to cancel finalization jobs", "auction_id", auction.ID, "error", err)
		}
	}

	emitAll(ctx, am.emitter, am.log, events...)

	am.log.Info("Auction finalized", "auction_id", auction.ID, "status", auction.Status.String(),
		"winner", auction.Winner, "price", auction.CurrentPrice, "reason", auction.FailureReason)
	return auction, nil
}

func (am *AuctionManager) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	return am.store.GetAuction(ctx, auctionID)
}
