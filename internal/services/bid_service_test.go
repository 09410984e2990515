package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"service-auction/internal/domain"
	"service-auction/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceBid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t)

	f.clock.Advance(time.Minute)
	got, err := f.bids.PlaceBid(ctx, a.ID, alice, 110)
	require.NoError(t, err)

	assert.Equal(t, uint64(110), got.CurrentPrice)
	assert.Equal(t, alice.ID, got.CurrentWinner)
	assert.Equal(t, uint32(1), got.TotalBids)
	require.Len(t, got.Bids, 1)
	assert.Equal(t, domain.Bid{Bidder: alice.ID, Amount: 110, Timestamp: f.clock.Now(), IsWinning: true}, got.Bids[0])
	assert.Equal(t, start.Add(time.Hour), got.AuctionEndTime)
	assert.Equal(t, []domain.AuditEventKind{domain.EventAuctionCreated, domain.EventBidPlaced}, f.audit.Kinds())
}

func TestPlaceBidRecordsPreviousWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t)

	_, err := f.bids.PlaceBid(ctx, a.ID, alice, 110)
	require.NoError(t, err)
	_, err = f.bids.PlaceBid(ctx, a.ID, bob, 120)
	require.NoError(t, err)

	events, err := f.audit.GetAuctionEvents(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.NotContains(t, events[1].Payload, "previous_winner")
	assert.Equal(t, alice.ID, events[2].Payload["previous_winner"])
}

func TestPlaceBidRejections(t *testing.T) {
	tests := []struct {
		name    string
		bidder  domain.Identity
		amount  uint64
		setup   func(t *testing.T, f *fixture, id string)
		wantErr error
	}{
		{name: "unsigned", bidder: domain.Identity{ID: "alice"}, amount: 120, wantErr: domain.ErrUnauthorizedAccess},
		{name: "equal to current price", bidder: alice, amount: 100, wantErr: domain.ErrInvalidBid},
		{name: "below increment floor", bidder: alice, amount: 109, wantErr: domain.ErrInvalidBid},
		{name: "above payment maximum", bidder: alice, amount: 1_000_000_000_001, wantErr: domain.ErrInvalidPaymentAmount},
		{name: "zero", bidder: alice, amount: 0, wantErr: domain.ErrInvalidPaymentAmount},
		{name: "creator bids", bidder: owner, amount: 120, wantErr: domain.ErrUnauthorizedAccess},
		{
			name:   "current winner outbids self",
			bidder: alice,
			amount: 200,
			setup: func(t *testing.T, f *fixture, id string) {
				_, err := f.bids.PlaceBid(context.Background(), id, alice, 120)
				require.NoError(t, err)
			},
			wantErr: domain.ErrUnauthorizedAccess,
		},
		{
			name:   "after deadline",
			bidder: alice,
			amount: 120,
			setup: func(t *testing.T, f *fixture, id string) {
				f.clock.Advance(time.Hour)
			},
			wantErr: domain.ErrInvalidDeadline,
		},
		{
			name:   "rate limited",
			bidder: alice,
			amount: 120,
			setup: func(t *testing.T, f *fixture, id string) {
				f.limiter.set(false, nil)
			},
			wantErr: domain.ErrRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.create(t)
			if tt.setup != nil {
				tt.setup(t, f, a.ID)
			}
			before := f.get(t, a.ID)
			eventsBefore := len(f.audit.Kinds())

			_, err := f.bids.PlaceBid(context.Background(), a.ID, tt.bidder, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, before, f.get(t, a.ID))
			assert.Len(t, f.audit.Kinds(), eventsBefore)
		})
	}
}

func TestPlaceBidUnknownAuction(t *testing.T) {
	f := newFixture(t)
	_, err := f.bids.PlaceBid(context.Background(), "missing", alice, 120)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestPlaceBidRateLimiterErrorFailsOpen(t *testing.T) {
	f := newFixture(t)
	a := f.create(t)
	f.limiter.set(false, errors.New("redis down"))

	_, err := f.bids.PlaceBid(context.Background(), a.ID, alice, 120)
	require.NoError(t, err)
}

// Scenario C
func TestAntiSnipeExtension(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t)

	f.clock.Advance(time.Hour - 200*time.Second)
	got, err := f.bids.PlaceBid(ctx, a.ID, alice, 120)
	require.NoError(t, err)

	assert.Equal(t, a.AuctionEndTime.Add(300*time.Second), got.AuctionEndTime)
	assert.Equal(t, 1, got.Extensions)
	assert.Equal(t, got.AuctionEndTime, f.scheduler.runAt(a.ID))
	assert.Equal(t, 1, f.scheduler.rescheduled)
	assert.Equal(t, []domain.AuditEventKind{
		domain.EventAuctionCreated,
		domain.EventAuctionExtended,
		domain.EventBidPlaced,
	}, f.audit.Kinds())
}

func TestNoExtensionOutsideWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t)

	f.clock.Advance(time.Hour - 300*time.Second)
	got, err := f.bids.PlaceBid(ctx, a.ID, alice, 120)
	require.NoError(t, err)
	assert.Equal(t, a.AuctionEndTime, got.AuctionEndTime)
	assert.Zero(t, f.scheduler.rescheduled)
}

func TestExtensionCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t)

	bidders := []domain.Identity{alice, bob}
	price := uint64(100)
	end := a.AuctionEndTime
	for i := 0; i < 5; i++ {
		f.clock.Set(end.Add(-time.Second))
		price += 10
		got, err := f.bids.PlaceBid(ctx, a.ID, bidders[i%2], price)
		require.NoError(t, err)
		if i < 3 {
			assert.Equal(t, end.Add(300*time.Second), got.AuctionEndTime, "bid %d", i)
		} else {
			assert.Equal(t, end, got.AuctionEndTime, "bid %d", i)
		}
		end = got.AuctionEndTime
	}
	assert.Equal(t, 3, f.get(t, a.ID).Extensions)
}

func TestUnlimitedExtensions(t *testing.T) {
	ctx := context.Background()
	policy := services.DefaultAntiSnipePolicy()
	policy.MaxExtensions = 0
	f := newFixture(t, withPolicy(policy))
	a := f.create(t)

	bidders := []domain.Identity{alice, bob}
	price := uint64(100)
	end := a.AuctionEndTime
	for i := 0; i < 6; i++ {
		f.clock.Set(end.Add(-time.Second))
		price += 10
		got, err := f.bids.PlaceBid(ctx, a.ID, bidders[i%2], price)
		require.NoError(t, err)
		assert.True(t, got.AuctionEndTime.After(end))
		end = got.AuctionEndTime
	}
}

func TestExcessiveBiddingEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withExcessiveBids(2))
	a := f.create(t)

	bidders := []domain.Identity{alice, bob}
	for i := 0; i < 3; i++ {
		_, err := f.bids.PlaceBid(ctx, a.ID, bidders[i%2], uint64(110+10*i))
		require.NoError(t, err)
	}

	assert.Equal(t, []domain.AuditEventKind{
		domain.EventAuctionCreated,
		domain.EventBidPlaced,
		domain.EventBidPlaced,
		domain.EventExcessiveBidding,
		domain.EventBidPlaced,
	}, f.audit.Kinds())

	// Advisory only: the third bid was accepted.
	assert.Equal(t, uint32(3), f.get(t, a.ID).TotalBids)
}

func TestBidHistoryHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t)

	bidders := []domain.Identity{alice, bob}
	var last *domain.Auction
	for i := 0; i < 6; i++ {
		got, err := f.bids.PlaceBid(ctx, a.ID, bidders[i%2], uint64(110+10*i))
		require.NoError(t, err)
		last = got
	}

	require.Len(t, last.Bids, 6)
	assert.Equal(t, 1, last.Bids.WinningCount())
	w, ok := last.Bids.Winning()
	require.True(t, ok)
	assert.Equal(t, last.CurrentWinner, w.Bidder)
	assert.Equal(t, last.CurrentPrice, w.Amount)
	assert.Equal(t, 3, last.Bids.CountBy(alice.ID))
	for i := 1; i < len(last.Bids); i++ {
		assert.Greater(t, last.Bids[i].Amount, last.Bids[i-1].Amount)
	}
	require.NoError(t, services.VerifyLedgerConsistency(last))
}

func TestConcurrentBidsKeepPriceMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t)

	const bidders = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []uint64
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bidder := domain.Identity{ID: fmt.Sprintf("bidder-%d", i), Signer: true}
			amount := uint64(110 + 10*i)
			if _, err := f.bids.PlaceBid(ctx, a.ID, bidder, amount); err == nil {
				mu.Lock()
				accepted = append(accepted, amount)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	final := f.get(t, a.ID)
	require.NotEmpty(t, accepted)
	assert.Equal(t, int(final.TotalBids), len(accepted))
	assert.Len(t, final.Bids, len(accepted))
	assert.Equal(t, 1, final.Bids.WinningCount())
	for i := 1; i < len(final.Bids); i++ {
		assert.Greater(t, final.Bids[i].Amount, final.Bids[i-1].Amount)
	}
	require.NoError(t, services.VerifyLedgerConsistency(final))
}
