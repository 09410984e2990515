package domain

import (
	"time"
)

type AuditEventKind string

const (
	EventAuctionCreated       AuditEventKind = "AUCTION_CREATED"
	EventBidPlaced            AuditEventKind = "AUCTION_BID_PLACED"
	EventAuctionExtended      AuditEventKind = "AUCTION_EXTENDED"
	EventExcessiveBidding     AuditEventKind = "EXCESSIVE_BIDDING"
	EventAuctionFinalized     AuditEventKind = "AUCTION_FINALIZED"
	EventAuctionFailedReserve AuditEventKind = "AUCTION_FAILED_RESERVE"
	EventAuctionFailedNoBids  AuditEventKind = "AUCTION_FAILED_NO_BIDS"
)

// Terminal reports whether the event closes the auction.
func (k AuditEventKind) Terminal() bool {
	switch k {
	case EventAuctionFinalized, EventAuctionFailedReserve, EventAuctionFailedNoBids:
		return true
	default:
		return false
	}
}

type AuditEvent struct {
	Kind      AuditEventKind         `json:"kind"`
	AuctionID string                 `json:"auction_id"`
	Actor     string                 `json:"actor"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
