package domain

import (
	"context"
	"time"
)

// AuctionMutation is applied to a private copy of an auction. Returning an
// error discards the copy, so no partial change is ever stored.
type AuctionMutation func(auction *Auction) error

// AuctionStore is the keyed storage collaborator. Update must run the
// mutation as one serializable step per auction: two concurrent updates of
// the same auction never both see the same starting state.
type AuctionStore interface {
	// CreateAuction assigns the id and stores the auction. A second auction
	// for the same (agent, creator) pair fails with ErrAuctionExists.
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	UpdateAuction(ctx context.Context, auctionID string, mutate AuctionMutation) (*Auction, error)
}

// Emitter is the audit/event side channel. Delivery failures are reported
// but never undo a committed transition.
type Emitter interface {
	Emit(ctx context.Context, event *AuditEvent) error
}

type AgentDirectory interface {
	GetAgent(ctx context.Context, agentID string) (*AgentInfo, error)
}

// Authorizer decides which identities act as the protocol authority.
type Authorizer interface {
	IsProtocolAuthority(identity Identity) bool
}

// RateLimiter is the pluggable rate limiting hook. Errors are treated as
// "allow" by callers.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type AuditRepository interface {
	SaveEvent(ctx context.Context, event *AuditEvent) error
	GetAuctionEvents(ctx context.Context, auctionID string) ([]*AuditEvent, error)
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForAuction(ctx context.Context, auctionID string) error
}

// Event interfaces
type EventSubscriber interface {
	SubscribeToAuditEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *AuditEvent) error

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Scheduler interface
type AuctionScheduler interface {
	ScheduleFinalization(ctx context.Context, auctionID string, runAt time.Time) error
	RescheduleFinalization(ctx context.Context, auctionID string, runAt time.Time) error
	CancelSchedule(ctx context.Context, auctionID string) error
	Start(ctx context.Context) error
	Stop() error
}

// Notification interfaces
type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(conn WebSocketConnection) error
	UnregisterConnection(conn WebSocketConnection) error
	GetConnectionsForAuction(auctionID string) []WebSocketConnection
	GetConnectionsForUser(userID string) []WebSocketConnection
	BroadcastToAuction(auctionID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}
