// Package store persists experiment runs to SQLite so prompts remain
// auditable after the fact: every stored prompt keeps its back-reference
// to the rule and frame that produced it.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"specprobe/internal/experiment"
	"specprobe/internal/policy"
	"specprobe/internal/synth"
)

// AuditStore records runs, their extracted rules, and their prompts.
type AuditStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open initializes the SQLite database at path, creating tables as
// needed.
func Open(path string) (*AuditStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &AuditStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *AuditStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		policy_text TEXT NOT NULL,
		total_prompts INTEGER NOT NULL,
		trials INTEGER NOT NULL,
		result TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS rules (
		run_id TEXT NOT NULL REFERENCES runs(id),
		rule_id TEXT NOT NULL,
		category TEXT NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (run_id, rule_id)
	);
	CREATE TABLE IF NOT EXISTS prompts (
		run_id TEXT NOT NULL REFERENCES runs(id),
		prompt_id TEXT NOT NULL,
		target_rule_id TEXT NOT NULL,
		request_frame TEXT NOT NULL,
		strategy TEXT NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (run_id, prompt_id)
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *AuditStore) Close() error {
	return s.db.Close()
}

// RunRecord is one persisted experiment.
type RunRecord struct {
	ID           string
	PolicyText   string
	TotalPrompts int
	Trials       int
	Result       *experiment.Result
	CreatedAt    time.Time
}

// SaveRun stores the run with its rules and prompts in one transaction
// and returns the generated run id.
func (s *AuditStore) SaveRun(policyText string, totalPrompts, trials int, rules []policy.Rule, prompts []synth.Prompt, result *experiment.Result) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID := uuid.New().String()
	if _, err := tx.Exec(
		`INSERT INTO runs (id, policy_text, total_prompts, trials, result) VALUES (?, ?, ?, ?, ?)`,
		runID, policyText, totalPrompts, trials, string(resultJSON),
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, rule := range rules {
		body, err := json.Marshal(rule)
		if err != nil {
			return "", fmt.Errorf("failed to marshal rule %s: %w", rule.ID, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO rules (run_id, rule_id, category, body) VALUES (?, ?, ?, ?)`,
			runID, rule.ID, rule.Category, string(body),
		); err != nil {
			return "", fmt.Errorf("failed to insert rule %s: %w", rule.ID, err)
		}
	}

	for _, p := range prompts {
		body, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("failed to marshal prompt %s: %w", p.ID, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO prompts (run_id, prompt_id, target_rule_id, request_frame, strategy, body) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, p.ID, p.TargetRuleID, p.RequestFrame, p.Strategy, string(body),
		); err != nil {
			return "", fmt.Errorf("failed to insert prompt %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// GetRun loads one run by id.
func (s *AuditStore) GetRun(runID string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec RunRecord
	var resultJSON string
	err := s.db.QueryRow(
		`SELECT id, policy_text, total_prompts, trials, result, created_at FROM runs WHERE id = ?`,
		runID,
	).Scan(&rec.ID, &rec.PolicyText, &rec.TotalPrompts, &rec.Trials, &resultJSON, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	rec.Result = &experiment.Result{}
	if err := json.Unmarshal([]byte(resultJSON), rec.Result); err != nil {
		return nil, fmt.Errorf("failed to parse stored result: %w", err)
	}
	return &rec, nil
}

// PromptsForRule returns the stored prompts that target the given rule
// in a run, preserving insertion order.
func (s *AuditStore) PromptsForRule(runID, ruleID string) ([]synth.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT body FROM prompts WHERE run_id = ? AND target_rule_id = ? ORDER BY rowid`,
		runID, ruleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	var out []synth.Prompt
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		var p synth.Prompt
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, fmt.Errorf("failed to parse stored prompt: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRuns returns run ids newest first.
func (s *AuditStore) ListRuns(limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT id FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
