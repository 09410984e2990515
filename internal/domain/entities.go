package domain

import (
	"time"
)

type Auction struct {
	ID                  string        `json:"id"`
	Agent               string        `json:"agent"`
	Creator             string        `json:"creator"`
	AuctionType         AuctionType   `json:"auction_type"`
	Terms               ServiceTerms  `json:"terms"`
	StartingPrice       uint64        `json:"starting_price"`
	ReservePrice        uint64        `json:"reserve_price"`
	MinimumBidIncrement uint64        `json:"minimum_bid_increment"`
	CurrentPrice        uint64        `json:"current_price"`
	CurrentWinner       string        `json:"current_winner,omitempty"`
	AuctionEndTime      time.Time     `json:"auction_end_time"`
	Extensions          int           `json:"extensions"`
	TotalBids           uint32        `json:"total_bids"`
	Status              AuctionStatus `json:"status"`
	Winner              string        `json:"winner,omitempty"`
	FailureReason       string        `json:"failure_reason,omitempty"`
	Bids                BidLedger     `json:"bids,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	EndedAt             *time.Time    `json:"ended_at,omitempty"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// HasWinner reports whether at least one bid has been accepted.
func (a *Auction) HasWinner() bool {
	return a.CurrentWinner != ""
}

func (a *Auction) IsTerminal() bool {
	return a.Status == AuctionSettled || a.Status == AuctionCancelled
}

// Clone returns a deep copy, so a failed transition never leaks into the
// stored value.
func (a *Auction) Clone() *Auction {
	c := *a
	c.Terms.Requirements = append([]string(nil), a.Terms.Requirements...)
	c.Bids = append(BidLedger(nil), a.Bids...)
	if a.EndedAt != nil {
		t := *a.EndedAt
		c.EndedAt = &t
	}
	return &c
}

type ServiceTerms struct {
	Description   string   `json:"description"`
	Requirements  []string `json:"requirements,omitempty"`
	MinimumRating float64  `json:"minimum_rating,omitempty"`
	MetadataURI   string   `json:"metadata_uri,omitempty"`
}

type AuctionType int

const (
	LowestPrice AuctionType = iota
	BestValue
	Dutch
)

func (t AuctionType) String() string {
	switch t {
	case LowestPrice:
		return "lowest_price"
	case BestValue:
		return "best_value"
	case Dutch:
		return "dutch"
	default:
		return "unknown"
	}
}

func ParseAuctionType(s string) (AuctionType, bool) {
	switch s {
	case "lowest_price", "":
		return LowestPrice, true
	case "best_value":
		return BestValue, true
	case "dutch":
		return Dutch, true
	default:
		return LowestPrice, false
	}
}

type AuctionStatus int

const (
	AuctionActive AuctionStatus = iota
	AuctionSettled
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionActive:
		return "active"
	case AuctionSettled:
		return "settled"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

const (
	ReasonNoBids        = "no bids received"
	ReasonReserveNotMet = "reserve price not met"
)

type Bid struct {
	Bidder    string    `json:"bidder"`
	Amount    uint64    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	IsWinning bool      `json:"is_winning"`
}

// AgentInfo is what the agent directory knows about a seller.
type AgentInfo struct {
	ID       string
	Owner    string
	IsActive bool
}

type ScheduledJob struct {
	ID        string
	AuctionID string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobFinalizeAuction JobType = "finalize_auction"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)
