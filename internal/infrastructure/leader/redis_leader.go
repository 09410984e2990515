package leader

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultLeaderKey = "auction_leader"

var releaseScript = redis.NewScript(`
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("DEL", KEYS[1])
    else
        return 0
    end
`)

var extendScript = redis.NewScript(`
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("PEXPIRE", KEYS[1], ARGV[2])
    else
        return 0
    end
`)

// RedisLeaderElection elects the instance that runs the finalization
// scheduler. The lease is a key with a TTL, renewed by a heartbeat.
type RedisLeaderElection struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu   sync.Mutex
	stop map[string]chan struct{}
}

func NewRedisLeaderElection(client *redis.Client, key string, ttl time.Duration) *RedisLeaderElection {
	if key == "" {
		key = DefaultLeaderKey
	}
	return &RedisLeaderElection{
		client: client,
		key:    key,
		ttl:    ttl,
		stop:   make(map[string]chan struct{}),
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	result, err := r.client.SetNX(ctx, r.key, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if result {
		// Start heartbeat to maintain leadership
		r.mu.Lock()
		if _, running := r.stop[instanceID]; !running {
			stop := make(chan struct{})
			r.stop[instanceID] = stop
			go r.maintainLeadership(instanceID, stop)
		}
		r.mu.Unlock()
	}

	return result, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	r.stopHeartbeat(instanceID)
	return releaseScript.Run(ctx, r.client, []string{r.key}, instanceID).Err()
}

func (r *RedisLeaderElection) stopHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stop, ok := r.stop[instanceID]; ok {
		close(stop)
		delete(r.stop, instanceID)
	}
}

func (r *RedisLeaderElection) maintainLeadership(instanceID string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.ttl / 3) // Refresh at 1/3 of TTL
	defer ticker.Stop()
	defer func() {
		r.mu.Lock()
		if r.stop[instanceID] == stop {
			delete(r.stop, instanceID)
		}
		r.mu.Unlock()
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		result, err := extendScript.Run(ctx, r.client, []string{r.key}, instanceID, r.ttl.Milliseconds()).Int64()
		cancel()

		if err != nil || result == 0 {
			// Lost leadership, stop heartbeat
			return
		}
	}
}
