package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Agent is one row of the agents table.
type Agent struct {
	AgentID   string
	AgentType string
	CreatedAt time.Time
	Metadata  string
}

// AgentInstance is one row of the agent_instances table.
type AgentInstance struct {
	InstanceID string
	AgentID    string
	SessionID  string
	ProjectDir string
	Host       string
	StartedAt  time.Time
}

// AgentStore manages agents and agent_instances.
type AgentStore struct{ s *Store }

// Register upserts the agent row (agent_id is unique) and always
// inserts a new instance row. Registering the same agent_type twice
// yields one agent row and two instance rows (spec.md §8).
func (a *AgentStore) Register(ctx context.Context, agentID, agentType, sessionID, projectDir, host, metadata string) (*AgentInstance, error) {
	instanceID := uuid.NewString()
	now := time.Now().UTC()

	err := a.s.execute(ctx, "agents.register", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agents (agent_id, agent_type, created_at, metadata)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(agent_id) DO UPDATE SET agent_type = excluded.agent_type`,
			agentID, agentType, now, metadata); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO agent_instances (instance_id, agent_id, session_id, project_dir, host, started_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			instanceID, agentID, sessionID, projectDir, host, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AgentInstance{InstanceID: instanceID, AgentID: agentID, SessionID: sessionID, ProjectDir: projectDir, Host: host, StartedAt: now}, nil
}

// Get reads one agent row.
func (a *AgentStore) Get(ctx context.Context, agentID string) (*Agent, error) {
	row := a.s.queryRow(ctx, `SELECT agent_id, agent_type, created_at, metadata FROM agents WHERE agent_id = ?`, agentID)
	var ag Agent
	var metadata sql.NullString
	if err := row.Scan(&ag.AgentID, &ag.AgentType, &ag.CreatedAt, &metadata); err != nil {
		return nil, err
	}
	ag.Metadata = metadata.String
	return &ag, nil
}

// ListInstances enumerates the most recent instances, newest first,
// bounded by limit.
func (a *AgentStore) ListInstances(ctx context.Context, limit int) ([]AgentInstance, error) {
	rows, err := a.s.query(ctx, `
		SELECT instance_id, agent_id, session_id, project_dir, host, started_at
		FROM agent_instances ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentInstance
	for rows.Next() {
		var inst AgentInstance
		var sessionID, projectDir, host sql.NullString
		if err := rows.Scan(&inst.InstanceID, &inst.AgentID, &sessionID, &projectDir, &host, &inst.StartedAt); err != nil {
			a.s.log.Error("store: agents.list_instances scan failed", "error", err)
			return out, nil
		}
		inst.SessionID = sessionID.String
		inst.ProjectDir = projectDir.String
		inst.Host = host.String
		out = append(out, inst)
	}
	return out, nil
}
