package store

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

var scheduleColumns = []string{
	"user_id", "quiz_id", "pattern_id", "question_id", "state", "due_at",
	"interval_sec", "ease", "step_index", "streak", "lapses", "due_fuzz",
	"last_result", "last_answer_ms", "last_seen_at", "created_at", "updated_at",
}

// scheduleRepo implements ScheduleRepo on the schedule table.
type scheduleRepo struct {
	s *Store
}

func scheduleKeyPredicate(key ScheduleKey) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("user_id", key.UserID),
		entsql.EQ("quiz_id", key.QuizID),
		entsql.EQ("pattern_id", key.PatternID),
		entsql.EQ("question_id", key.QuestionID),
	)
}

func scanScheduleEntry(rows *entsql.Rows) (ScheduleEntry, error) {
	var (
		e                                 ScheduleEntry
		state, result                     string
		due, lastSeen, created, updatedAt int64
	)
	err := rows.Scan(&e.UserID, &e.QuizID, &e.PatternID, &e.QuestionID, &state, &due,
		&e.IntervalSec, &e.Ease, &e.StepIndex, &e.Streak, &e.Lapses, &e.DueFuzz,
		&result, &e.LastAnswerMs, &lastSeen, &created, &updatedAt)
	if err != nil {
		return e, err
	}
	e.State = ScheduleState(state)
	e.LastResult = Result(result)
	e.DueAt = fromMillis(due)
	e.LastSeenAt = fromMillis(lastSeen)
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updatedAt)
	return e, nil
}

func getSchedule(ctx context.Context, ex dialect.ExecQuerier, key ScheduleKey) (*ScheduleEntry, error) {
	query, args := sqlb.Select(scheduleColumns...).
		From(sqlb.Table(tableSchedule)).
		Where(scheduleKeyPredicate(key)).
		Limit(1).
		Query()
	var found *ScheduleEntry
	err := queryEach(ctx, ex, query, args, func(rows *entsql.Rows) error {
		e, err := scanScheduleEntry(rows)
		if err != nil {
			return err
		}
		found = &e
		return nil
	})
	return found, err
}

func (r *scheduleRepo) Get(ctx context.Context, key ScheduleKey) (*ScheduleEntry, error) {
	e, err := getSchedule(ctx, r.s.drv, key)
	if err != nil {
		return nil, fmt.Errorf("get schedule entry: %w", err)
	}
	return e, nil
}

func (r *scheduleRepo) Update(ctx context.Context, key ScheduleKey, fn func(cur *ScheduleEntry) (*ScheduleEntry, error)) (*ScheduleEntry, error) {
	var out *ScheduleEntry
	err := r.s.withTx(ctx, func(tx dialect.Tx) error {
		cur, err := getSchedule(ctx, tx, key)
		if err != nil {
			return fmt.Errorf("read schedule entry: %w", err)
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		if next == nil {
			out = cur
			return nil
		}
		next.ScheduleKey = key
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = time.Now()
		}
		if next.CreatedAt.IsZero() {
			next.CreatedAt = next.UpdatedAt
		}
		if err := putSchedule(ctx, tx, next); err != nil {
			return fmt.Errorf("write schedule entry: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update schedule entry: %w", err)
	}
	return out, nil
}

func putSchedule(ctx context.Context, ex dialect.ExecQuerier, e *ScheduleEntry) error {
	query, args := sqlb.Insert(tableSchedule).
		Columns(scheduleColumns...).
		Values(e.UserID, e.QuizID, e.PatternID, e.QuestionID, string(e.State), toMillis(e.DueAt),
			e.IntervalSec, e.Ease, e.StepIndex, e.Streak, e.Lapses, e.DueFuzz,
			string(e.LastResult), e.LastAnswerMs, toMillis(e.LastSeenAt), toMillis(e.CreatedAt), toMillis(e.UpdatedAt)).
		OnConflict(
			entsql.ConflictColumns("user_id", "quiz_id", "pattern_id", "question_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	_, err := execBuilt(ctx, ex, query, args)
	return err
}

func (r *scheduleRepo) ListDue(ctx context.Context, q DueQuery) ([]ScheduleEntry, error) {
	states := q.States
	if len(states) == 0 {
		states = DueStates
	}
	wanted := make(map[ScheduleState]bool, len(states))
	for _, st := range states {
		wanted[st] = true
	}

	var out []ScheduleEntry
	for _, st := range DueStates {
		if !wanted[st] {
			continue
		}
		preds := []*entsql.Predicate{
			entsql.EQ("user_id", q.UserID),
			entsql.EQ("quiz_id", q.QuizID),
			entsql.EQ("state", string(st)),
			entsql.LTE("due_at", q.Until.UnixMilli()),
		}
		if len(q.PatternIDs) > 0 {
			ids := make([]any, len(q.PatternIDs))
			for i, id := range q.PatternIDs {
				ids[i] = id
			}
			preds = append(preds, entsql.In("pattern_id", ids...))
		}
		sel := sqlb.Select(scheduleColumns...).
			From(sqlb.Table(tableSchedule)).
			Where(entsql.And(preds...)).
			OrderBy("due_at", "question_id")
		if q.PerStateLimit > 0 {
			sel.Limit(q.PerStateLimit)
		}
		query, args := sel.Query()
		err := queryEach(ctx, r.s.drv, query, args, func(rows *entsql.Rows) error {
			e, err := scanScheduleEntry(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list due %s entries: %w", st, err)
		}
	}
	return out, nil
}

func (r *scheduleRepo) Delete(ctx context.Context, key ScheduleKey) error {
	query, args := sqlb.Delete(tableSchedule).Where(scheduleKeyPredicate(key)).Query()
	if _, err := execBuilt(ctx, r.s.drv, query, args); err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	return nil
}

func (r *scheduleRepo) DeleteQuiz(ctx context.Context, userID, quizID string) (int, error) {
	query, args := sqlb.Delete(tableSchedule).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("quiz_id", quizID))).
		Query()
	n, err := execBuilt(ctx, r.s.drv, query, args)
	if err != nil {
		return 0, fmt.Errorf("delete quiz schedule: %w", err)
	}
	return int(n), nil
}

func (r *scheduleRepo) CountByState(ctx context.Context, userID, quizID string, now time.Time) (map[ScheduleState]StateCount, error) {
	query, args := sqlb.Select("state", "due_at").
		From(sqlb.Table(tableSchedule)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("quiz_id", quizID))).
		Query()
	counts := make(map[ScheduleState]StateCount)
	nowMs := now.UnixMilli()
	err := queryEach(ctx, r.s.drv, query, args, func(rows *entsql.Rows) error {
		var (
			state string
			due   int64
		)
		if err := rows.Scan(&state, &due); err != nil {
			return err
		}
		c := counts[ScheduleState(state)]
		c.Total++
		if due <= nowMs {
			c.Due++
		}
		counts[ScheduleState(state)] = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count schedule states: %w", err)
	}
	return counts, nil
}
