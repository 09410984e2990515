package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"service-auction/internal/domain"
	"service-auction/internal/infrastructure/memory"
	"service-auction/internal/services"
	"service-auction/pkg/clock"
	"service-auction/pkg/logger"

	"github.com/stretchr/testify/require"
)

var (
	owner     = domain.Identity{ID: "owner-1", Signer: true}
	alice     = domain.Identity{ID: "alice", Signer: true}
	bob       = domain.Identity{ID: "bob", Signer: true}
	authority = domain.Identity{ID: "protocol", Signer: true}
	start     = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	clock     *clock.Fake
	store     *memory.AuctionStore
	audit     *memory.AuditRepository
	directory *memory.AgentDirectory
	scheduler *recordingScheduler
	limiter   *stubLimiter
	manager   *services.AuctionManager
	bids      *services.BidService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	policy        services.AntiSnipePolicy
	excessiveBids uint32
}

func withPolicy(p services.AntiSnipePolicy) fixtureOption {
	return func(c *fixtureConfig) { c.policy = p }
}

func withExcessiveBids(n uint32) fixtureOption {
	return func(c *fixtureConfig) { c.excessiveBids = n }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{policy: services.DefaultAntiSnipePolicy(), excessiveBids: 10}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{
		clock: clock.NewFake(start),
		store: memory.NewAuctionStore(),
		audit: memory.NewAuditRepository(),
		directory: memory.NewAgentDirectory(
			domain.AgentInfo{ID: "agent-1", Owner: owner.ID, IsActive: true},
			domain.AgentInfo{ID: "agent-idle", Owner: owner.ID, IsActive: false},
		),
		scheduler: &recordingScheduler{},
		limiter:   &stubLimiter{allow: true},
	}
	log := logger.NewNop()
	f.manager = services.NewAuctionManager(f.store, f.directory, services.NewStaticAuthorizer(authority.ID),
		f.limiter, f.audit, f.scheduler, f.clock, services.DefaultLimits(), log)
	f.bids = services.NewBidService(f.store, f.limiter, f.audit, f.scheduler, f.clock,
		services.DefaultLimits(), cfg.policy, cfg.excessiveBids, log)
	return f
}

// params returns the setup shared by the walkthrough scenarios: starting
// price 100, reserve 150, increment 10, one hour long.
func (f *fixture) params() services.CreateAuctionParams {
	return services.CreateAuctionParams{
		Agent:               "agent-1",
		Terms:               domain.ServiceTerms{Description: "summarize 100 documents"},
		AuctionType:         domain.LowestPrice,
		StartingPrice:       100,
		ReservePrice:        150,
		MinimumBidIncrement: 10,
		AuctionEndTime:      f.clock.Now().Add(time.Hour),
	}
}

func (f *fixture) create(t *testing.T) *domain.Auction {
	t.Helper()
	a, err := f.manager.CreateAuction(context.Background(), owner, f.params())
	require.NoError(t, err)
	return a
}

func (f *fixture) get(t *testing.T, id string) *domain.Auction {
	t.Helper()
	a, err := f.manager.GetAuction(context.Background(), id)
	require.NoError(t, err)
	return a
}

type recordingScheduler struct {
	mu          sync.Mutex
	scheduled   map[string]time.Time
	rescheduled int
	cancelled   []string
	err         error
}

func (s *recordingScheduler) ScheduleFinalization(_ context.Context, auctionID string, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduled == nil {
		s.scheduled = make(map[string]time.Time)
	}
	s.scheduled[auctionID] = runAt
	return s.err
}

func (s *recordingScheduler) RescheduleFinalization(ctx context.Context, auctionID string, runAt time.Time) error {
	s.mu.Lock()
	s.rescheduled++
	s.mu.Unlock()
	return s.ScheduleFinalization(ctx, auctionID, runAt)
}

func (s *recordingScheduler) CancelSchedule(_ context.Context, auctionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, auctionID)
	return nil
}

func (s *recordingScheduler) Start(context.Context) error { return nil }
func (s *recordingScheduler) Stop() error                 { return nil }

func (s *recordingScheduler) runAt(auctionID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled[auctionID]
}

type stubLimiter struct {
	mu    sync.Mutex
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

func (l *stubLimiter) set(allow bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allow, l.err = allow, err
}

var errEmitterDown = errors.New("emitter down")

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *domain.AuditEvent) error { return errEmitterDown }
