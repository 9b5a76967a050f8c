package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var attemptColumns = []string{
	"id", "session_id", "user_id", "quiz_id", "pattern_id", "question_id", "concept_id",
	"selected_concept_id", "result", "correct", "answer_ms", "stage", "created_at",
}

// sessionRepo implements SessionRepo on the sessions and attempts tables.
type sessionRepo struct {
	s *Store
}

func (r *sessionRepo) StartSession(ctx context.Context, rec *SessionRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	cfg, err := marshalText(rec.Config)
	if err != nil {
		return fmt.Errorf("marshal session config: %w", err)
	}
	query, args := sqlb.Insert(tableSessions).
		Columns("session_id", "user_id", "quiz_id", "quiz_title", "mode", "mode_id", "seed", "config", "started_at").
		Values(rec.ID, rec.UserID, rec.QuizID, rec.QuizTitle, rec.Mode, rec.ModeID, rec.Seed, cfg, toMillis(rec.StartedAt)).
		Query()
	if _, err := execBuilt(ctx, r.s.drv, query, args); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *sessionRepo) FinishSession(ctx context.Context, sessionID string, summary map[string]any) error {
	text, err := marshalText(summary)
	if err != nil {
		return fmt.Errorf("marshal session summary: %w", err)
	}
	query, args := sqlb.Update(tableSessions).
		Set("ended_at", time.Now().UnixMilli()).
		Set("summary", text).
		Where(entsql.EQ("session_id", sessionID)).
		Query()
	if _, err := execBuilt(ctx, r.s.drv, query, args); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	query, args := sqlb.Select("session_id", "user_id", "quiz_id", "quiz_title", "mode", "mode_id",
		"seed", "config", "started_at", "ended_at", "summary").
		From(sqlb.Table(tableSessions)).
		Where(entsql.EQ("session_id", sessionID)).
		Query()
	var found *SessionRecord
	err := queryEach(ctx, r.s.drv, query, args, func(rows *entsql.Rows) error {
		var (
			rec              SessionRecord
			cfg, summary     string
			started, endedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.QuizID, &rec.QuizTitle, &rec.Mode, &rec.ModeID,
			&rec.Seed, &cfg, &started, &endedAt, &summary); err != nil {
			return err
		}
		if err := unmarshalText(cfg, &rec.Config); err != nil {
			return fmt.Errorf("decode session config: %w", err)
		}
		if err := unmarshalText(summary, &rec.Summary); err != nil {
			return fmt.Errorf("decode session summary: %w", err)
		}
		rec.StartedAt = fromMillis(started)
		rec.EndedAt = fromMillis(endedAt)
		found = &rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return found, nil
}

func (r *sessionRepo) AddAttempt(ctx context.Context, a *AttemptRecord) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	query, args := sqlb.Insert(tableAttempts).
		Columns(attemptColumns[1:]...).
		Values(a.SessionID, a.UserID, a.QuizID, a.PatternID, a.QuestionID, a.ConceptID,
			a.SelectedConceptID, string(a.Result), boolInt(a.Correct), a.AnswerMs, a.Stage, toMillis(a.CreatedAt)).
		Query()
	var res sql.Result
	if err := r.s.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("attempt id: %w", err)
	}
	a.ID = id
	return nil
}

func (r *sessionRepo) ListAttempts(ctx context.Context, sessionID string) ([]AttemptRecord, error) {
	query, args := sqlb.Select(attemptColumns...).
		From(sqlb.Table(tableAttempts)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("id").
		Query()
	var out []AttemptRecord
	err := queryEach(ctx, r.s.drv, query, args, func(rows *entsql.Rows) error {
		var (
			a       AttemptRecord
			result  string
			correct int
			created int64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserID, &a.QuizID, &a.PatternID, &a.QuestionID,
			&a.ConceptID, &a.SelectedConceptID, &result, &correct, &a.AnswerMs, &a.Stage, &created); err != nil {
			return err
		}
		a.Result = Result(result)
		a.Correct = correct != 0
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return out, nil
}

func (r *sessionRepo) UserStats(ctx context.Context, userID, quizID string) (UserStats, error) {
	where := entsql.EQ("user_id", userID)
	if quizID != "" {
		where = entsql.And(where, entsql.EQ("quiz_id", quizID))
	}
	query, args := sqlb.Select("result", "correct").
		From(sqlb.Table(tableAttempts)).
		Where(where).
		Query()
	var stats UserStats
	err := queryEach(ctx, r.s.drv, query, args, func(rows *entsql.Rows) error {
		var (
			result  string
			correct int
		)
		if err := rows.Scan(&result, &correct); err != nil {
			return err
		}
		stats.TotalAttempts++
		if correct != 0 {
			stats.CorrectAttempts++
		}
		switch Result(result) {
		case ResultWeak:
			stats.WeakAttempts++
		case ResultIdk:
			stats.IdkCount++
		}
		return nil
	})
	if err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return stats, nil
}
