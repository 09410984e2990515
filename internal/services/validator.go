package services

import (
	"fmt"
	"math/bits"
	"time"

	"service-auction/internal/domain"
)

// Limits are the global bounds every auction is checked against.
type Limits struct {
	MinPaymentAmount   uint64
	MaxPaymentAmount   uint64
	MinBidIncrement    uint64
	MinAuctionDuration time.Duration
	MaxAuctionDuration time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MinPaymentAmount:   1,
		MaxPaymentAmount:   1_000_000_000_000,
		MinBidIncrement:    1,
		MinAuctionDuration: time.Hour,
		MaxAuctionDuration: 30 * 24 * time.Hour,
	}
}

// ValidatePaymentAmount fails unless amount is within the global payment bounds.
func (l Limits) ValidatePaymentAmount(amount uint64, fieldName string) error {
	if amount < l.MinPaymentAmount || amount > l.MaxPaymentAmount {
		return fmt.Errorf("%w: %s %d outside [%d, %d]",
			domain.ErrInvalidPaymentAmount, fieldName, amount, l.MinPaymentAmount, l.MaxPaymentAmount)
	}
	return nil
}

// ValidateBidIncrement requires MinBidIncrement <= increment <= startingPrice/10.
func (l Limits) ValidateBidIncrement(increment, startingPrice uint64) error {
	if increment < l.MinBidIncrement || increment > startingPrice/10 {
		return fmt.Errorf("%w: minimum_bid_increment %d outside [%d, %d]",
			domain.ErrInvalidPaymentAmount, increment, l.MinBidIncrement, startingPrice/10)
	}
	return nil
}

// ValidateDuration requires the time left until endTime to be within the
// auction duration bounds.
func (l Limits) ValidateDuration(endTime, now time.Time) error {
	d := endTime.Sub(now)
	if !endTime.After(now) || d < l.MinAuctionDuration || d > l.MaxAuctionDuration {
		return fmt.Errorf("%w: auction duration %s outside [%s, %s]",
			domain.ErrInvalidDeadline, d, l.MinAuctionDuration, l.MaxAuctionDuration)
	}
	return nil
}

// VerifyAuctionInvariants checks that a price state is internally
// consistent. It runs before every mutation and again before finalization.
func VerifyAuctionInvariants(currentPrice, startingPrice, reservePrice, increment uint64) error {
	if increment == 0 {
		return fmt.Errorf("%w: bid increment is zero", domain.ErrInvariantViolation)
	}
	if currentPrice < startingPrice {
		return fmt.Errorf("%w: current price %d below starting price %d",
			domain.ErrInvariantViolation, currentPrice, startingPrice)
	}
	if reservePrice != 0 && reservePrice < startingPrice {
		return fmt.Errorf("%w: reserve price %d below starting price %d",
			domain.ErrInvariantViolation, reservePrice, startingPrice)
	}
	return nil
}

// VerifyLedgerConsistency checks the auction's counters against its bid
// ledger.
func VerifyLedgerConsistency(a *domain.Auction) error {
	if int(a.TotalBids) != len(a.Bids) {
		return fmt.Errorf("%w: total_bids %d but ledger holds %d bids",
			domain.ErrInvariantViolation, a.TotalBids, len(a.Bids))
	}

	last, ok := a.Bids.Last()
	if !ok {
		if a.CurrentPrice != a.StartingPrice || a.HasWinner() {
			return fmt.Errorf("%w: price or winner set without any bid", domain.ErrInvariantViolation)
		}
		return nil
	}

	if last.Amount != a.CurrentPrice || last.Bidder != a.CurrentWinner {
		return fmt.Errorf("%w: current state (%s, %d) does not match last bid (%s, %d)",
			domain.ErrInvariantViolation, a.CurrentWinner, a.CurrentPrice, last.Bidder, last.Amount)
	}
	if n := a.Bids.WinningCount(); n != 1 || !last.IsWinning {
		return fmt.Errorf("%w: %d winning bids in ledger", domain.ErrInvariantViolation, n)
	}
	return nil
}

// MinimumNextBid returns currentPrice + increment. ok is false when the sum
// does not fit in 64 bits, in which case no bid can satisfy the floor.
func MinimumNextBid(currentPrice, increment uint64) (uint64, bool) {
	sum, carry := bits.Add64(currentPrice, increment, 0)
	if carry != 0 {
		return ^uint64(0), false
	}
	return sum, true
}
