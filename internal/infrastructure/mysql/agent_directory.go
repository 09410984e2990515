package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"service-auction/internal/domain"
)

type MySQLAgentDirectory struct {
	db *sql.DB
}

func NewMySQLAgentDirectory(db *sql.DB) *MySQLAgentDirectory {
	return &MySQLAgentDirectory{db: db}
}

// GetAgent reports unknown agents as not active.
func (r *MySQLAgentDirectory) GetAgent(ctx context.Context, agentID string) (*domain.AgentInfo, error) {
	var agent domain.AgentInfo
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner, is_active FROM agents WHERE id = ?`, agentID).
		Scan(&agent.ID, &agent.Owner, &agent.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown agent %s", domain.ErrAgentNotActive, agentID)
		}
		return nil, err
	}
	return &agent, nil
}
