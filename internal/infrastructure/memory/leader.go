package memory

import (
	"context"
	"sync"
)

// LeaderElection elects within one process. The first instance to ask wins
// until it releases.
type LeaderElection struct {
	mu     sync.Mutex
	leader string
}

func NewLeaderElection() *LeaderElection {
	return &LeaderElection{}
}

func (l *LeaderElection) BecomeLeader(_ context.Context, instanceID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.leader == "" {
		l.leader = instanceID
		return true, nil
	}
	return false, nil
}

func (l *LeaderElection) IsLeader(_ context.Context, instanceID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.leader != "" && l.leader == instanceID, nil
}

func (l *LeaderElection) ReleaseLeadership(_ context.Context, instanceID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.leader == instanceID {
		l.leader = ""
	}
	return nil
}
