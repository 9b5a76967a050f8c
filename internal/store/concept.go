package store

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

var conceptColumns = []string{"user_id", "concept_id", "uncertainty_ema", "recent_idk", "updated_at"}

// conceptRepo implements ConceptRepo on the concept_stats table.
type conceptRepo struct {
	s *Store
}

func selectConcepts(ctx context.Context, ex dialect.ExecQuerier, sel *entsql.Selector) ([]ConceptStat, error) {
	query, args := sel.Query()
	var out []ConceptStat
	err := queryEach(ctx, ex, query, args, func(rows *entsql.Rows) error {
		var (
			c       ConceptStat
			updated int64
		)
		if err := rows.Scan(&c.UserID, &c.ConceptID, &c.UncertaintyEMA, &c.RecentIdk, &updated); err != nil {
			return err
		}
		c.UpdatedAt = fromMillis(updated)
		out = append(out, c)
		return nil
	})
	return out, err
}

// nextConceptStat applies one attempt to the uncertainty averages.
func nextConceptStat(c ConceptStat, result Result) ConceptStat {
	switch {
	case result == ResultIdk:
		c.UncertaintyEMA = c.UncertaintyEMA*0.9 + 0.1
		c.RecentIdk = c.RecentIdk*0.8 + 1
	case !result.Correct():
		c.UncertaintyEMA = c.UncertaintyEMA*0.92 + 0.08
		c.RecentIdk = c.RecentIdk * 0.8
	default:
		c.UncertaintyEMA = c.UncertaintyEMA * 0.85
		c.RecentIdk = c.RecentIdk * 0.7
	}
	c.UncertaintyEMA = round4(c.UncertaintyEMA)
	c.RecentIdk = round4(c.RecentIdk)
	return c
}

func (r *conceptRepo) UpdateFromAttempt(ctx context.Context, o AttemptOutcome) error {
	if o.UserID == "" || o.CorrectConceptID == "" {
		return nil
	}
	err := r.s.withTx(ctx, func(tx dialect.Tx) error {
		existing, err := selectConcepts(ctx, tx, sqlb.Select(conceptColumns...).
			From(sqlb.Table(tableConceptStats)).
			Where(entsql.And(entsql.EQ("user_id", o.UserID), entsql.EQ("concept_id", o.CorrectConceptID))))
		if err != nil {
			return err
		}
		c := ConceptStat{UserID: o.UserID, ConceptID: o.CorrectConceptID}
		if len(existing) > 0 {
			c = existing[0]
		}
		c = nextConceptStat(c, o.Result)
		c.UpdatedAt = time.Now()

		query, args := sqlb.Insert(tableConceptStats).
			Columns(conceptColumns...).
			Values(c.UserID, c.ConceptID, c.UncertaintyEMA, c.RecentIdk, toMillis(c.UpdatedAt)).
			OnConflict(
				entsql.ConflictColumns("user_id", "concept_id"),
				entsql.ResolveWithNewValues(),
			).
			Query()
		_, err = execBuilt(ctx, tx, query, args)
		return err
	})
	if err != nil {
		return fmt.Errorf("update concept stats: %w", err)
	}
	return nil
}

func (r *conceptRepo) Get(ctx context.Context, userID, conceptID string) (*ConceptStat, error) {
	stats, err := selectConcepts(ctx, r.s.drv, sqlb.Select(conceptColumns...).
		From(sqlb.Table(tableConceptStats)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("concept_id", conceptID))))
	if err != nil {
		return nil, fmt.Errorf("get concept stats: %w", err)
	}
	if len(stats) == 0 {
		return nil, nil
	}
	return &stats[0], nil
}

func (r *conceptRepo) Map(ctx context.Context, userID string, conceptIDs []string) (map[string]ConceptStat, error) {
	out := make(map[string]ConceptStat)
	ids := uniqueStrings(conceptIDs)
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	stats, err := selectConcepts(ctx, r.s.drv, sqlb.Select(conceptColumns...).
		From(sqlb.Table(tableConceptStats)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.In("concept_id", args...))))
	if err != nil {
		return nil, fmt.Errorf("map concept stats: %w", err)
	}
	for _, c := range stats {
		out[c.ConceptID] = c
	}
	return out, nil
}

// ListUncertain returns concepts whose uncertainty EMA is at least minScore,
// most uncertain first.
func (r *conceptRepo) ListUncertain(ctx context.Context, userID string, minScore float64, limit int) ([]ConceptStat, error) {
	sel := sqlb.Select(conceptColumns...).
		From(sqlb.Table(tableConceptStats)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.GTE("uncertainty_ema", minScore))).
		OrderBy(entsql.Desc("uncertainty_ema"), "concept_id")
	if limit > 0 {
		sel.Limit(limit)
	}
	stats, err := selectConcepts(ctx, r.s.drv, sel)
	if err != nil {
		return nil, fmt.Errorf("list uncertain concepts: %w", err)
	}
	return stats, nil
}
