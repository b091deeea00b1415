package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// SwitchModel is the database row for one workspace navigation event.
type SwitchModel struct {
	ID           int64
	WorkspaceNum int
	OutputName   string
	ModeType     string
	SwitchedAt   int64 // Unix timestamp
}

// HistoryRepository persists workspace switches so navigation history
// survives daemon restarts.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a repository over db.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append records one switch.
func (r *HistoryRepository) Append(workspaceNum int, outputName, modeType string, at time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO workspace_switches (workspace_num, output_name, mode_type, switched_at) VALUES (?, ?, ?, ?)`,
		workspaceNum, outputName, modeType, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert workspace switch: %w", err)
	}
	return nil
}

// Recent returns the newest limit switches, most recent first.
func (r *HistoryRepository) Recent(limit int) ([]SwitchModel, error) {
	rows, err := r.db.Query(
		`SELECT id, workspace_num, output_name, mode_type, switched_at
		 FROM workspace_switches ORDER BY switched_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query workspace switches: %w", err)
	}
	defer rows.Close()

	var out []SwitchModel
	for rows.Next() {
		var m SwitchModel
		if err := rows.Scan(&m.ID, &m.WorkspaceNum, &m.OutputName, &m.ModeType, &m.SwitchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace switch: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Prune keeps only the newest keep rows.
func (r *HistoryRepository) Prune(keep int) error {
	_, err := r.db.Exec(
		`DELETE FROM workspace_switches WHERE id NOT IN (
			SELECT id FROM workspace_switches ORDER BY switched_at DESC, id DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("failed to prune workspace switches: %w", err)
	}
	return nil
}

// UsageRepository persists per-project switch counters.
type UsageRepository struct {
	db *sql.DB
}

// NewUsageRepository creates a repository over db.
func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Record increments a project's usage counter.
func (r *UsageRepository) Record(project string, at time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO project_usage (project, switch_count, last_used_at) VALUES (?, 1, ?)
		 ON CONFLICT(project) DO UPDATE SET switch_count = switch_count + 1, last_used_at = excluded.last_used_at`,
		project, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record project usage: %w", err)
	}
	return nil
}

// All returns every project's switch count.
func (r *UsageRepository) All() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT project, switch_count FROM project_usage`)
	if err != nil {
		return nil, fmt.Errorf("failed to query project usage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var project string
		var count int
		if err := rows.Scan(&project, &count); err != nil {
			return nil, fmt.Errorf("failed to scan project usage: %w", err)
		}
		out[project] = count
	}
	return out, rows.Err()
}
