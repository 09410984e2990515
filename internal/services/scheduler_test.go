package services_test

import (
	"context"
	"testing"
	"time"

	"service-auction/internal/domain"
	"service-auction/internal/infrastructure/memory"
	"service-auction/internal/services"
	"service-auction/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	*fixture
	repo   *memory.SchedulerRepository
	leader *memory.LeaderElection
	cron   *services.CronAuctionScheduler
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	f := newFixture(t)
	sf := &schedulerFixture{
		fixture: f,
		repo:    memory.NewSchedulerRepository(),
		leader:  memory.NewLeaderElection(),
	}
	sf.cron = services.NewCronAuctionScheduler(sf.repo, f.manager, sf.leader, "instance-1",
		authority, "@every 1s", f.clock, logger.NewNop())
	f.manager.SetScheduler(sf.cron)
	f.bids.SetScheduler(sf.cron)

	ok, err := sf.leader.BecomeLeader(context.Background(), "instance-1")
	require.NoError(t, err)
	require.True(t, ok)
	return sf
}

func jobStatuses(jobs []domain.ScheduledJob) []domain.JobStatus {
	var out []domain.JobStatus
	for _, j := range jobs {
		out = append(out, j.Status)
	}
	return out
}

func TestSchedulerFinalizesDueAuction(t *testing.T) {
	ctx := context.Background()
	sf := newSchedulerFixture(t)
	a := sf.create(t)

	jobs := sf.repo.Jobs(a.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobFinalizeAuction, jobs[0].JobType)
	assert.Equal(t, a.AuctionEndTime, jobs[0].RunAt)

	// Not due yet.
	sf.cron.RunPendingJobs(ctx)
	assert.Equal(t, domain.AuctionActive, sf.get(t, a.ID).Status)

	sf.clock.Advance(time.Hour)
	sf.cron.RunPendingJobs(ctx)

	assert.Equal(t, domain.AuctionCancelled, sf.get(t, a.ID).Status)
	assert.Equal(t, []domain.JobStatus{domain.JobExecuted}, jobStatuses(sf.repo.Jobs(a.ID)))
}

func TestSchedulerFollowsExtension(t *testing.T) {
	ctx := context.Background()
	sf := newSchedulerFixture(t)
	a := sf.create(t)

	sf.clock.Advance(time.Hour - 10*time.Second)
	extended, err := sf.bids.PlaceBid(ctx, a.ID, alice, 160)
	require.NoError(t, err)
	require.True(t, extended.AuctionEndTime.After(a.AuctionEndTime))

	jobs := sf.repo.Jobs(a.ID)
	require.Len(t, jobs, 2)
	assert.Equal(t, domain.JobCancelled, jobs[0].Status)
	assert.Equal(t, domain.JobPending, jobs[1].Status)
	assert.Equal(t, extended.AuctionEndTime, jobs[1].RunAt)

	sf.clock.Set(extended.AuctionEndTime)
	sf.cron.RunPendingJobs(ctx)

	final := sf.get(t, a.ID)
	assert.Equal(t, domain.AuctionSettled, final.Status)
	assert.Equal(t, alice.ID, final.Winner)
}

func TestSchedulerReschedulesEarlyJob(t *testing.T) {
	ctx := context.Background()
	sf := newSchedulerFixture(t)
	a := sf.create(t)

	// A stale job left from before an extension.
	require.NoError(t, sf.repo.CreateJob(ctx, &domain.ScheduledJob{
		ID:        "stale",
		AuctionID: a.ID,
		JobType:   domain.JobFinalizeAuction,
		RunAt:     start,
		Status:    domain.JobPending,
	}))

	sf.cron.RunPendingJobs(ctx)

	assert.Equal(t, domain.AuctionActive, sf.get(t, a.ID).Status)
	var pending []domain.ScheduledJob
	for _, j := range sf.repo.Jobs(a.ID) {
		if j.Status == domain.JobPending {
			pending = append(pending, j)
		}
	}
	require.Len(t, pending, 1)
	assert.Equal(t, a.AuctionEndTime, pending[0].RunAt)
}

func TestSchedulerSkipsWhenNotLeader(t *testing.T) {
	ctx := context.Background()
	sf := newSchedulerFixture(t)
	a := sf.create(t)
	require.NoError(t, sf.leader.ReleaseLeadership(ctx, "instance-1"))
	_, err := sf.leader.BecomeLeader(ctx, "instance-2")
	require.NoError(t, err)

	sf.clock.Advance(time.Hour)
	sf.cron.RunPendingJobs(ctx)

	assert.Equal(t, domain.AuctionActive, sf.get(t, a.ID).Status)
	assert.Equal(t, []domain.JobStatus{domain.JobPending}, jobStatuses(sf.repo.Jobs(a.ID)))
}

func TestSchedulerClosesJobsForFinishedAuction(t *testing.T) {
	ctx := context.Background()
	sf := newSchedulerFixture(t)
	a := sf.create(t)

	require.NoError(t, sf.repo.CreateJob(ctx, &domain.ScheduledJob{
		ID: "orphan", AuctionID: "missing", JobType: domain.JobFinalizeAuction,
		RunAt: start, Status: domain.JobPending,
	}))

	sf.clock.Advance(time.Hour)
	_, err := sf.manager.FinalizeAuction(ctx, a.ID, owner)
	require.NoError(t, err)

	// Finalizing cancels the auction's own job.
	assert.Equal(t, []domain.JobStatus{domain.JobCancelled}, jobStatuses(sf.repo.Jobs(a.ID)))

	sf.cron.RunPendingJobs(ctx)
	assert.Equal(t, []domain.JobStatus{domain.JobCancelled}, jobStatuses(sf.repo.Jobs("missing")))
}

func TestSchedulerStartStop(t *testing.T) {
	sf := newSchedulerFixture(t)
	require.NoError(t, sf.cron.Start(context.Background()))
	require.NoError(t, sf.cron.Stop())
}
