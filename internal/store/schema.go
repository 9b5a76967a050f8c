package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// sqlb builds SQLite statements.
var sqlb = entsql.Dialect(dialect.SQLite)

const (
	tableSchedule     = "schedule"
	tableQuestions    = "questions"
	tableConfusion    = "confusion"
	tableConceptStats = "concept_stats"
	tableSessions     = "sessions"
	tableAttempts     = "attempts"
	tablePackages     = "packages"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS schedule (
		user_id TEXT NOT NULL,
		quiz_id TEXT NOT NULL,
		pattern_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		state TEXT NOT NULL,
		due_at INTEGER NOT NULL,
		interval_sec REAL NOT NULL DEFAULT 0,
		ease REAL NOT NULL,
		step_index INTEGER NOT NULL DEFAULT 0,
		streak INTEGER NOT NULL DEFAULT 0,
		lapses INTEGER NOT NULL DEFAULT 0,
		due_fuzz REAL NOT NULL DEFAULT 1,
		last_result TEXT NOT NULL DEFAULT '',
		last_answer_ms INTEGER NOT NULL DEFAULT 0,
		last_seen_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, quiz_id, pattern_id, question_id)
	)`,
	`CREATE INDEX IF NOT EXISTS schedule_due ON schedule (user_id, quiz_id, state, due_at)`,
	`CREATE TABLE IF NOT EXISTS questions (
		quiz_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		pattern_id TEXT NOT NULL,
		concept_id TEXT NOT NULL DEFAULT '',
		option_concept_ids TEXT NOT NULL DEFAULT '[]',
		payload TEXT NOT NULL,
		saved_at INTEGER NOT NULL,
		PRIMARY KEY (quiz_id, question_id)
	)`,
	`CREATE INDEX IF NOT EXISTS questions_concept ON questions (quiz_id, concept_id)`,
	`CREATE TABLE IF NOT EXISTS confusion (
		user_id TEXT NOT NULL,
		concept_id TEXT NOT NULL,
		wrong_concept_id TEXT NOT NULL,
		shown INTEGER NOT NULL DEFAULT 0,
		chosen INTEGER NOT NULL DEFAULT 0,
		idk_near INTEGER NOT NULL DEFAULT 0,
		score REAL NOT NULL DEFAULT 0,
		recent_sessions REAL NOT NULL DEFAULT 0,
		last_shown_at INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, concept_id, wrong_concept_id)
	)`,
	`CREATE TABLE IF NOT EXISTS concept_stats (
		user_id TEXT NOT NULL,
		concept_id TEXT NOT NULL,
		uncertainty_ema REAL NOT NULL DEFAULT 0,
		recent_idk REAL NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, concept_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		quiz_id TEXT NOT NULL,
		quiz_title TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		mode_id TEXT NOT NULL DEFAULT '',
		seed TEXT NOT NULL DEFAULT '',
		config TEXT NOT NULL DEFAULT '{}',
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL DEFAULT 0,
		summary TEXT NOT NULL DEFAULT 'null'
	)`,
	`CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		quiz_id TEXT NOT NULL,
		pattern_id TEXT NOT NULL DEFAULT '',
		question_id TEXT NOT NULL,
		concept_id TEXT NOT NULL DEFAULT '',
		selected_concept_id TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL,
		correct INTEGER NOT NULL DEFAULT 0,
		answer_ms INTEGER NOT NULL DEFAULT 0,
		stage TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS attempts_user ON attempts (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS attempts_session ON attempts (session_id)`,
	`CREATE TABLE IF NOT EXISTS packages (
		package_id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		pattern_hash TEXT NOT NULL,
		row_hashes TEXT NOT NULL DEFAULT '{}',
		row_concepts TEXT NOT NULL DEFAULT '{}',
		pattern_ids TEXT NOT NULL DEFAULT '[]',
		updated_at INTEGER NOT NULL
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	return s.withTx(ctx, func(tx dialect.Tx) error {
		for _, stmt := range ddl {
			if err := tx.Exec(ctx, stmt, []any{}, nil); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}
		return nil
	})
}

// execBuilt runs a built statement and returns the number of affected rows.
func execBuilt(ctx context.Context, ex dialect.ExecQuerier, query string, args []any) (int64, error) {
	var res sql.Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// queryEach runs a built query and calls scan for every row.
func queryEach(ctx context.Context, ex dialect.ExecQuerier, query string, args []any, scan func(rows *entsql.Rows) error) error {
	var rows entsql.Rows
	if err := ex.Query(ctx, query, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func marshalText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalText(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
