package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"service-auction/internal/domain"
)

type SchedulerRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScheduledJob
}

func NewSchedulerRepository() *SchedulerRepository {
	return &SchedulerRepository{jobs: make(map[string]*domain.ScheduledJob)}
}

func (r *SchedulerRepository) CreateJob(_ context.Context, job *domain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	stored := *job
	r.jobs[job.ID] = &stored
	return nil
}

func (r *SchedulerRepository) GetPendingJobs(_ context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var jobs []*domain.ScheduledJob
	for _, job := range r.jobs {
		if job.Status == domain.JobPending && !job.RunAt.After(before) {
			j := *job
			jobs = append(jobs, &j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].RunAt.Before(jobs[k].RunAt) })
	return jobs, nil
}

func (r *SchedulerRepository) UpdateJobStatus(_ context.Context, jobID string, status domain.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	job.Status = status
	return nil
}

func (r *SchedulerRepository) CancelJobsForAuction(_ context.Context, auctionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.AuctionID == auctionID && job.Status == domain.JobPending {
			job.Status = domain.JobCancelled
		}
	}
	return nil
}

// Jobs returns a copy of every job for the auction, in run order.
func (r *SchedulerRepository) Jobs(auctionID string) []domain.ScheduledJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.ScheduledJob
	for _, job := range r.jobs {
		if job.AuctionID == auctionID {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].RunAt.Before(out[k].RunAt) })
	return out
}
