package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBidLedgerFirstBid(t *testing.T) {
	var l BidLedger

	_, ok := l.Winning()
	assert.False(t, ok)

	l.Append(Bid{Bidder: "a", Amount: 120, Timestamp: time.Unix(10, 0)})

	require.Len(t, l, 1)
	w, ok := l.Winning()
	require.True(t, ok)
	assert.Equal(t, "a", w.Bidder)
	assert.Equal(t, 1, l.WinningCount())
}

func TestBidLedgerMovesWinningFlag(t *testing.T) {
	var l BidLedger
	l.Append(Bid{Bidder: "a", Amount: 120})
	l.Append(Bid{Bidder: "b", Amount: 130})
	l.Append(Bid{Bidder: "a", Amount: 140})

	require.Len(t, l, 3)
	assert.Equal(t, 1, l.WinningCount())
	assert.False(t, l[0].IsWinning)
	assert.False(t, l[1].IsWinning)
	assert.True(t, l[2].IsWinning)

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(140), last.Amount)

	assert.Equal(t, 2, l.CountBy("a"))
	assert.Equal(t, 1, l.CountBy("b"))
	assert.Equal(t, 0, l.CountBy("c"))
}

func TestBidLedgerPreservesOrderAndAmounts(t *testing.T) {
	var l BidLedger
	amounts := []uint64{110, 125, 150, 180}
	for i, a := range amounts {
		l.Append(Bid{Bidder: string(rune('a' + i)), Amount: a})
	}

	for i, a := range amounts {
		assert.Equal(t, a, l[i].Amount)
	}
}

func TestAuctionCloneIsDeep(t *testing.T) {
	ended := time.Unix(100, 0)
	a := &Auction{
		ID:      "x",
		Terms:   ServiceTerms{Requirements: []string{"go"}},
		EndedAt: &ended,
	}
	a.Bids.Append(Bid{Bidder: "a", Amount: 10})

	c := a.Clone()
	c.Bids.Append(Bid{Bidder: "b", Amount: 20})
	c.Terms.Requirements[0] = "rust"
	*c.EndedAt = time.Unix(200, 0)

	assert.Len(t, a.Bids, 1)
	assert.True(t, a.Bids[0].IsWinning)
	assert.Equal(t, "go", a.Terms.Requirements[0])
	assert.Equal(t, time.Unix(100, 0), *a.EndedAt)
}

func TestParseAuctionType(t *testing.T) {
	for _, typ := range []AuctionType{LowestPrice, BestValue, Dutch} {
		parsed, ok := ParseAuctionType(typ.String())
		assert.True(t, ok)
		assert.Equal(t, typ, parsed)
	}

	_, ok := ParseAuctionType("english")
	assert.False(t, ok)
}
