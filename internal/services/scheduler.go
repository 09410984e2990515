package services

import (
	"context"
	"errors"
	"time"

	"service-auction/internal/domain"
	"service-auction/pkg/clock"
	"service-auction/pkg/logger"
	"service-auction/pkg/utils"

	"github.com/robfig/cron/v3"
)

// AuctionFinalizer is the part of AuctionManager the scheduler drives.
type AuctionFinalizer interface {
	FinalizeAuction(ctx context.Context, auctionID string, caller domain.Identity) (*domain.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
}

// CronAuctionScheduler finalizes auctions once their deadline passes. Jobs
// live in a SchedulerRepository so they survive restarts; only the elected
// leader runs them.
type CronAuctionScheduler struct {
	cron       *cron.Cron
	spec       string
	repo       domain.SchedulerRepository
	finalizer  AuctionFinalizer
	leader     domain.LeaderElection
	instanceID string
	authority  domain.Identity
	clock      clock.Clock
	log        logger.Logger
}

func NewCronAuctionScheduler(repo domain.SchedulerRepository, finalizer AuctionFinalizer,
	leader domain.LeaderElection, instanceID string, authority domain.Identity,
	spec string, clk clock.Clock, log logger.Logger) *CronAuctionScheduler {
	if spec == "" {
		spec = "@every 10s"
	}
	return &CronAuctionScheduler{
		cron:       cron.New(cron.WithSeconds()),
		spec:       spec,
		repo:       repo,
		finalizer:  finalizer,
		leader:     leader,
		instanceID: instanceID,
		authority:  authority,
		clock:      clk,
		log:        log,
	}
}

func (s *CronAuctionScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting auction scheduler", "spec", s.spec)

	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunPendingJobs(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronAuctionScheduler) Stop() error {
	s.log.Info("Stopping auction scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *CronAuctionScheduler) ScheduleFinalization(ctx context.Context, auctionID string, runAt time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		AuctionID: auctionID,
		JobType:   domain.JobFinalizeAuction,
		RunAt:     runAt,
		Status:    domain.JobPending,
		CreatedAt: s.clock.Now(),
	}

	return s.repo.CreateJob(ctx, job)
}

func (s *CronAuctionScheduler) RescheduleFinalization(ctx context.Context, auctionID string, runAt time.Time) error {
	if err := s.repo.CancelJobsForAuction(ctx, auctionID); err != nil {
		return err
	}

	return s.ScheduleFinalization(ctx, auctionID, runAt)
}

func (s *CronAuctionScheduler) CancelSchedule(ctx context.Context, auctionID string) error {
	return s.repo.CancelJobsForAuction(ctx, auctionID)
}

// RunPendingJobs executes every job that is due. It is a no-op on instances
// that are not the leader.
func (s *CronAuctionScheduler) RunPendingJobs(ctx context.Context) {
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check leadership", "error", err)
		return
	}
	if !isLeader {
		return
	}

	jobs, err := s.repo.GetPendingJobs(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "auction_id", job.AuctionID)

		if job.JobType != domain.JobFinalizeAuction {
			s.log.Warn("Unknown job type", "job_id", job.ID, "type", job.JobType)
			s.updateJob(ctx, job, domain.JobCancelled)
			continue
		}

		_, err := s.finalizer.FinalizeAuction(ctx, job.AuctionID, s.authority)
		switch {
		case err == nil:
			s.updateJob(ctx, job, domain.JobExecuted)
		case errors.Is(err, domain.ErrInvalidDeadline):
			// Extended after this job was written.
			s.reschedule(ctx, job)
		case errors.Is(err, domain.ErrInvalidApplicationStatus):
			s.updateJob(ctx, job, domain.JobExecuted)
		case errors.Is(err, domain.ErrAuctionNotFound):
			s.updateJob(ctx, job, domain.JobCancelled)
		default:
			// Don't mark as executed on error, will retry
			s.log.Error("Failed to execute job", "job_id", job.ID, "auction_id", job.AuctionID, "error", err)
		}
	}
}

func (s *CronAuctionScheduler) reschedule(ctx context.Context, job *domain.ScheduledJob) {
	auction, err := s.finalizer.GetAuction(ctx, job.AuctionID)
	if err != nil {
		s.log.Error("Failed to load auction for reschedule", "auction_id", job.AuctionID, "error", err)
		return
	}
	if err := s.RescheduleFinalization(ctx, job.AuctionID, auction.AuctionEndTime); err != nil {
		s.log.Error("Failed to reschedule finalization", "auction_id", job.AuctionID, "error", err)
	}
}

func (s *CronAuctionScheduler) updateJob(ctx context.Context, job *domain.ScheduledJob, status domain.JobStatus) {
	if err := s.repo.UpdateJobStatus(ctx, job.ID, status); err != nil {
		s.log.Error("Failed to update job status", "job_id", job.ID, "status", status, "error", err)
	}
}
