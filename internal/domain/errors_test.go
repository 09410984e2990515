package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		err      error
		expected ErrorCategory
	}{
		{fmt.Errorf("%w: bid 5", ErrInvalidPaymentAmount), CategoryValidation},
		{ErrInvalidDeadline, CategoryValidation},
		{ErrInvalidBid, CategoryValidation},
		{ErrUnauthorizedAccess, CategoryAuthorization},
		{ErrAgentNotActive, CategoryAuthorization},
		{fmt.Errorf("finalize: %w", ErrInvalidApplicationStatus), CategoryStateConflict},
		{ErrInvariantViolation, CategoryInvariant},
		{ErrAuctionNotFound, CategoryNotFound},
		{ErrAuctionExists, CategoryConflict},
		{ErrRateLimited, CategoryRateLimited},
		{errors.New("redis: connection refused"), CategoryInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CategoryOf(tt.err), tt.err.Error())
	}
}

func TestIdentity(t *testing.T) {
	id := Identity{ID: "alice", Signer: true}
	assert.True(t, id.IsSigner())
	assert.True(t, id.Matches("alice"))
	assert.False(t, id.Matches("bob"))
	assert.False(t, Identity{}.Matches(""))
	assert.False(t, Identity{ID: "alice"}.IsSigner())
}

func TestTerminalEvents(t *testing.T) {
	assert.True(t, EventAuctionFinalized.Terminal())
	assert.True(t, EventAuctionFailedNoBids.Terminal())
	assert.True(t, EventAuctionFailedReserve.Terminal())
	assert.False(t, EventBidPlaced.Terminal())
	assert.False(t, EventAuctionExtended.Terminal())
}
