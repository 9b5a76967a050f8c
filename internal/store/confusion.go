package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

var confusionColumns = []string{
	"user_id", "concept_id", "wrong_concept_id", "shown", "chosen", "idk_near",
	"score", "recent_sessions", "last_shown_at", "updated_at",
}

// confusionRepo implements ConfusionRepo on the confusion table.
type confusionRepo struct {
	s *Store
}

func scanConfusion(rows *entsql.Rows) (ConfusionStat, error) {
	var (
		c                  ConfusionStat
		lastShown, updated int64
	)
	err := rows.Scan(&c.UserID, &c.ConceptID, &c.WrongConceptID, &c.Shown, &c.Chosen, &c.IdkNear,
		&c.Score, &c.RecentSessions, &lastShown, &updated)
	c.LastShownAt = fromMillis(lastShown)
	c.UpdatedAt = fromMillis(updated)
	return c, err
}

func selectConfusion(ctx context.Context, ex dialect.ExecQuerier, sel *entsql.Selector) ([]ConfusionStat, error) {
	query, args := sel.Query()
	var out []ConfusionStat
	err := queryEach(ctx, ex, query, args, func(rows *entsql.Rows) error {
		c, err := scanConfusion(rows)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func putConfusion(ctx context.Context, ex dialect.ExecQuerier, c ConfusionStat) error {
	query, args := sqlb.Insert(tableConfusion).
		Columns(confusionColumns...).
		Values(c.UserID, c.ConceptID, c.WrongConceptID, c.Shown, c.Chosen, c.IdkNear,
			c.Score, c.RecentSessions, toMillis(c.LastShownAt), toMillis(c.UpdatedAt)).
		OnConflict(
			entsql.ConflictColumns("user_id", "concept_id", "wrong_concept_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	_, err := execBuilt(ctx, ex, query, args)
	return err
}

func confusionKey(userID, conceptID, wrongConceptID string) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("user_id", userID),
		entsql.EQ("concept_id", conceptID),
		entsql.EQ("wrong_concept_id", wrongConceptID),
	)
}

// UpdateFromAttempt counts every wrong option as shown. The selected wrong
// option counts as chosen, or as idk-near when the learner gave up.
func (r *confusionRepo) UpdateFromAttempt(ctx context.Context, o AttemptOutcome) error {
	if o.UserID == "" || o.CorrectConceptID == "" || len(o.OptionConceptIDs) == 0 {
		return nil
	}
	now := time.Now()
	err := r.s.withTx(ctx, func(tx dialect.Tx) error {
		for _, wrong := range uniqueStrings(o.OptionConceptIDs) {
			if wrong == o.CorrectConceptID {
				continue
			}
			existing, err := selectConfusion(ctx, tx, sqlb.Select(confusionColumns...).
				From(sqlb.Table(tableConfusion)).
				Where(confusionKey(o.UserID, o.CorrectConceptID, wrong)))
			if err != nil {
				return err
			}
			c := ConfusionStat{UserID: o.UserID, ConceptID: o.CorrectConceptID, WrongConceptID: wrong}
			if len(existing) > 0 {
				c = existing[0]
			}
			c.Shown++
			if o.Result == ResultIdk {
				if o.NearestConceptID == wrong {
					c.IdkNear++
				}
			} else if o.SelectedConceptID == wrong {
				c.Chosen++
			}
			c.Score = ConfusionScore(c.Shown, c.Chosen, c.IdkNear)
			c.LastShownAt = now
			c.UpdatedAt = now
			if err := putConfusion(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update confusion stats: %w", err)
	}
	return nil
}

func (r *confusionRepo) ForConcept(ctx context.Context, userID, conceptID string, limit int) ([]ConfusionStat, error) {
	sel := sqlb.Select(confusionColumns...).
		From(sqlb.Table(tableConfusion)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("concept_id", conceptID))).
		OrderBy(entsql.Desc("score"), "wrong_concept_id")
	if limit > 0 {
		sel.Limit(limit)
	}
	out, err := selectConfusion(ctx, r.s.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("read confusion stats: %w", err)
	}
	return out, nil
}

func (r *confusionRepo) TopPairs(ctx context.Context, userID string, opts TopPairsOptions) ([]ConfusionStat, error) {
	sel := sqlb.Select(confusionColumns...).
		From(sqlb.Table(tableConfusion)).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.GTE("score", opts.MinScore),
			entsql.LT("recent_sessions", opts.MaxRecent),
		)).
		OrderBy(entsql.Desc("score"), "concept_id", "wrong_concept_id")
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	out, err := selectConfusion(ctx, r.s.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("read top confusion pairs: %w", err)
	}
	return out, nil
}

func (r *confusionRepo) MarkScheduled(ctx context.Context, userID, conceptID, wrongConceptID string) error {
	err := r.s.withTx(ctx, func(tx dialect.Tx) error {
		existing, err := selectConfusion(ctx, tx, sqlb.Select(confusionColumns...).
			From(sqlb.Table(tableConfusion)).
			Where(confusionKey(userID, conceptID, wrongConceptID)))
		if err != nil || len(existing) == 0 {
			return err
		}
		c := existing[0]
		c.Score = round4(c.Score * 0.9)
		c.RecentSessions++
		c.UpdatedAt = time.Now()
		return putConfusion(ctx, tx, c)
	})
	if err != nil {
		return fmt.Errorf("mark confusion pair: %w", err)
	}
	return nil
}

// DecayRecentSessions falls back to 0.8 when factor is outside [0, 1].
func (r *confusionRepo) DecayRecentSessions(ctx context.Context, userID string, factor float64) error {
	if factor < 0 || factor > 1 {
		factor = 0.8
	}
	err := r.s.withTx(ctx, func(tx dialect.Tx) error {
		stats, err := selectConfusion(ctx, tx, sqlb.Select(confusionColumns...).
			From(sqlb.Table(tableConfusion)).
			Where(entsql.EQ("user_id", userID)))
		if err != nil {
			return err
		}
		now := time.Now()
		for _, c := range stats {
			c.RecentSessions = round4(c.RecentSessions * factor)
			c.UpdatedAt = now
			if err := putConfusion(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("decay confusion sessions: %w", err)
	}
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
