package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"planforge/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	goal TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT 'idle',
	current_task TEXT NOT NULL DEFAULT '',
	plan_remaining TEXT NOT NULL DEFAULT '[]',
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS plans (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	goal_name TEXT NOT NULL,
	tasks TEXT NOT NULL,
	cost REAL NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(agent_id, goal_name),
	FOREIGN KEY(agent_id) REFERENCES agents(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_plans_agent ON plans(agent_id, updated_at);

CREATE TABLE IF NOT EXISTS planning_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	goal_name TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_planning_events_agent ON planning_events(agent_id, created_at);
`

var ErrPlanNotFound = errors.New("plan not found")

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) UpsertAgent(ctx context.Context, snap domain.AgentSnapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	remaining, err := json.Marshal(snap.PlanRemaining)
	if err != nil {
		return fmt.Errorf("marshal plan remaining: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO agents(id, name, priority, goal, state, current_task, plan_remaining, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			priority = excluded.priority,
			goal = excluded.goal,
			state = excluded.state,
			current_task = excluded.current_task,
			plan_remaining = excluded.plan_remaining,
			updated_at = excluded.updated_at`,
		snap.ID, snap.Name, snap.Priority, snap.Goal, string(snap.State),
		snap.CurrentTask, string(remaining), snap.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

func (s *Store) ListAgents(ctx context.Context) ([]domain.AgentSnapshot, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, priority, goal, state, current_task, plan_remaining, updated_at
		FROM agents ORDER BY priority ASC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.AgentSnapshot, 0)
	for rows.Next() {
		var snap domain.AgentSnapshot
		var state string
		var remaining string
		var updated int64
		if err := rows.Scan(
			&snap.ID, &snap.Name, &snap.Priority, &snap.Goal, &state,
			&snap.CurrentTask, &remaining, &updated,
		); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		snap.State = domain.AgentState(state)
		if err := json.Unmarshal([]byte(remaining), &snap.PlanRemaining); err != nil {
			return nil, fmt.Errorf("unmarshal plan remaining: %w", err)
		}
		snap.UpdatedAt = unixToTime(updated)
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return result, nil
}

func (s *Store) SavePlan(ctx context.Context, record domain.PlanRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	tasks, err := json.Marshal(record.Tasks)
	if err != nil {
		return fmt.Errorf("marshal plan tasks: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO plans(id, agent_id, goal_name, tasks, cost, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id, goal_name) DO UPDATE SET
			tasks = excluded.tasks,
			cost = excluded.cost,
			updated_at = excluded.updated_at`,
		record.ID, record.AgentID, record.GoalName, string(tasks), record.Cost,
		record.CreatedAt.Unix(), record.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, agentID, goalName string) (domain.PlanRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, agent_id, goal_name, tasks, cost, created_at, updated_at
		FROM plans WHERE agent_id = ? AND goal_name = ?`,
		agentID, goalName,
	)
	record, err := scanPlan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PlanRecord{}, ErrPlanNotFound
		}
		return domain.PlanRecord{}, fmt.Errorf("get plan: %w", err)
	}
	return record, nil
}

func (s *Store) ListPlans(ctx context.Context, agentID string) ([]domain.PlanRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, agent_id, goal_name, tasks, cost, created_at, updated_at
		FROM plans WHERE agent_id = ? ORDER BY updated_at DESC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	result := make([]domain.PlanRecord, 0)
	for rows.Next() {
		record, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return result, nil
}

func (s *Store) DeletePlan(ctx context.Context, agentID, goalName string) error {
	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM plans WHERE agent_id = ? AND goal_name = ?`,
		agentID, goalName,
	)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}

func (s *Store) LogEvent(ctx context.Context, event domain.PlanningEvent) error {
	payload := string(event.Payload)
	if payload == "" {
		payload = "{}"
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO planning_events(agent_id, kind, goal_name, detail, payload, created_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		event.AgentID, string(event.Kind), event.GoalName, event.Detail, payload, event.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("log planning event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, agentID string, limit int) ([]domain.PlanningEvent, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, agent_id, kind, goal_name, detail, payload, created_at
		FROM planning_events
		WHERE agent_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list planning events: %w", err)
	}
	defer rows.Close()

	result := make([]domain.PlanningEvent, 0, limit)
	for rows.Next() {
		var event domain.PlanningEvent
		var kind string
		var payload string
		var created int64
		if err := rows.Scan(
			&event.ID, &event.AgentID, &kind, &event.GoalName, &event.Detail, &payload, &created,
		); err != nil {
			return nil, fmt.Errorf("scan planning event: %w", err)
		}
		event.Kind = domain.EventKind(kind)
		event.Payload = []byte(payload)
		event.CreatedAt = unixToTime(created)
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate planning events: %w", err)
	}
	return result, nil
}

func scanPlan(scan func(dest ...any) error) (domain.PlanRecord, error) {
	var record domain.PlanRecord
	var tasks string
	var created, updated int64
	if err := scan(
		&record.ID, &record.AgentID, &record.GoalName, &tasks, &record.Cost, &created, &updated,
	); err != nil {
		return domain.PlanRecord{}, err
	}
	if err := json.Unmarshal([]byte(tasks), &record.Tasks); err != nil {
		return domain.PlanRecord{}, fmt.Errorf("unmarshal plan tasks: %w", err)
	}
	record.CreatedAt = unixToTime(created)
	record.UpdatedAt = unixToTime(updated)
	return record, nil
}

func unixToTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}
