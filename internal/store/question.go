package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/bem130/rubyquiz/internal/problemgen"
)

// questionRepo implements QuestionRepo on the questions table.
type questionRepo struct {
	s *Store
}

func (r *questionRepo) Save(ctx context.Context, quizID string, q *problemgen.Question) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	optionIDs, err := marshalText(uniqueStrings(q.OptionConceptIDs()))
	if err != nil {
		return fmt.Errorf("marshal option concepts: %w", err)
	}

	query, args := sqlb.Insert(tableQuestions).
		Columns("quiz_id", "question_id", "pattern_id", "concept_id", "option_concept_ids", "payload", "saved_at").
		Values(quizID, q.ID, q.PatternID, q.ConceptID(), optionIDs, string(payload), time.Now().UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("quiz_id", "question_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := execBuilt(ctx, r.s.drv, query, args); err != nil {
		return fmt.Errorf("save question snapshot: %w", err)
	}
	return nil
}

func (r *questionRepo) Get(ctx context.Context, quizID, questionID string) (*problemgen.Question, error) {
	qs, err := r.list(ctx, entsql.And(entsql.EQ("quiz_id", quizID), entsql.EQ("question_id", questionID)), 1)
	if err != nil {
		return nil, fmt.Errorf("get question snapshot: %w", err)
	}
	if len(qs) == 0 {
		return nil, nil
	}
	return qs[0], nil
}

func (r *questionRepo) ListForQuiz(ctx context.Context, quizID string, limit int) ([]*problemgen.Question, error) {
	qs, err := r.list(ctx, entsql.EQ("quiz_id", quizID), limit)
	if err != nil {
		return nil, fmt.Errorf("list question snapshots: %w", err)
	}
	return qs, nil
}

func (r *questionRepo) FindByConcept(ctx context.Context, quizID, conceptID string, limit int) ([]*problemgen.Question, error) {
	qs, err := r.list(ctx, entsql.And(entsql.EQ("quiz_id", quizID), entsql.EQ("concept_id", conceptID)), limit)
	if err != nil {
		return nil, fmt.Errorf("find question snapshots: %w", err)
	}
	return qs, nil
}

func (r *questionRepo) Delete(ctx context.Context, quizID, questionID string) error {
	query, args := sqlb.Delete(tableQuestions).
		Where(entsql.And(entsql.EQ("quiz_id", quizID), entsql.EQ("question_id", questionID))).
		Query()
	if _, err := execBuilt(ctx, r.s.drv, query, args); err != nil {
		return fmt.Errorf("delete question snapshot: %w", err)
	}
	return nil
}

func (r *questionRepo) list(ctx context.Context, where *entsql.Predicate, limit int) ([]*problemgen.Question, error) {
	sel := sqlb.Select("payload").
		From(sqlb.Table(tableQuestions)).
		Where(where).
		OrderBy("question_id")
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	var out []*problemgen.Question
	err := queryEach(ctx, r.s.drv, query, args, func(rows *entsql.Rows) error {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return err
		}
		var q problemgen.Question
		if err := json.Unmarshal([]byte(payload), &q); err != nil {
			return fmt.Errorf("decode question payload: %w", err)
		}
		out = append(out, &q)
		return nil
	})
	return out, err
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
