package memory

import (
	"context"
	"fmt"
	"sync"

	"service-auction/internal/domain"
)

// AgentDirectory is a static agent registry. Unknown agents are reported as
// not active.
type AgentDirectory struct {
	mu     sync.RWMutex
	agents map[string]domain.AgentInfo
}

func NewAgentDirectory(agents ...domain.AgentInfo) *AgentDirectory {
	d := &AgentDirectory{agents: make(map[string]domain.AgentInfo)}
	for _, a := range agents {
		d.agents[a.ID] = a
	}
	return d
}

func (d *AgentDirectory) Put(agent domain.AgentInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[agent.ID] = agent
}

func (d *AgentDirectory) GetAgent(_ context.Context, agentID string) (*domain.AgentInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown agent %s", domain.ErrAgentNotActive, agentID)
	}
	return &a, nil
}
