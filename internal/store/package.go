package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/quiz"
)

// packageRepo implements PackageRepo on the packages table.
type packageRepo struct {
	s *Store
}

type packageRecord struct {
	contentHash string
	patternHash string
	rowHashes   map[string]string
	rowConcepts map[string]string
	patternIDs  []string
}

// hashJSON hashes the JSON encoding of v. encoding/json sorts map keys, so
// equal rows always hash equally.
func hashJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(uint64(problemgen.HashString(string(b))), 16), nil
}

func buildPackageRecord(ds *quiz.DataSet, patterns []*quiz.Pattern) (*packageRecord, error) {
	rec := &packageRecord{
		rowHashes:   make(map[string]string),
		rowConcepts: make(map[string]string),
	}
	var rows []quiz.Row
	if ds != nil {
		rows = ds.Rows
	}
	for _, row := range rows {
		h, err := hashJSON(row)
		if err != nil {
			return nil, fmt.Errorf("hash row %s: %w", row.ID(), err)
		}
		rec.rowHashes[row.ID()] = h
		rec.rowConcepts[row.ID()] = row.ConceptID()
	}

	type patternShape struct {
		ID     string
		Tokens quiz.Tokens
		Filter *quiz.Filter
	}
	shapes := make([]patternShape, 0, len(patterns))
	for _, p := range patterns {
		shapes = append(shapes, patternShape{ID: p.ID, Tokens: p.Tokens, Filter: p.Filter})
		rec.patternIDs = append(rec.patternIDs, p.ID)
	}
	var err error
	if rec.patternHash, err = hashJSON(shapes); err != nil {
		return nil, fmt.Errorf("hash patterns: %w", err)
	}
	if rec.contentHash, err = hashJSON(map[string]any{"patterns": shapes, "table": rows}); err != nil {
		return nil, fmt.Errorf("hash content: %w", err)
	}
	return rec, nil
}

func getPackage(ctx context.Context, ex dialect.ExecQuerier, fileKey string) (*packageRecord, error) {
	query, args := sqlb.Select("content_hash", "pattern_hash", "row_hashes", "row_concepts", "pattern_ids").
		From(sqlb.Table(tablePackages)).
		Where(entsql.EQ("package_id", fileKey)).
		Query()
	var found *packageRecord
	err := queryEach(ctx, ex, query, args, func(rows *entsql.Rows) error {
		var (
			rec                       packageRecord
			hashes, concepts, pattern string
		)
		if err := rows.Scan(&rec.contentHash, &rec.patternHash, &hashes, &concepts, &pattern); err != nil {
			return err
		}
		if err := unmarshalText(hashes, &rec.rowHashes); err != nil {
			return err
		}
		if err := unmarshalText(concepts, &rec.rowConcepts); err != nil {
			return err
		}
		if err := unmarshalText(pattern, &rec.patternIDs); err != nil {
			return err
		}
		found = &rec
		return nil
	})
	return found, err
}

func (r *packageRepo) Sync(ctx context.Context, fileKey string, ds *quiz.DataSet, patterns []*quiz.Pattern) (*SyncResult, error) {
	next, err := buildPackageRecord(ds, patterns)
	if err != nil {
		return nil, fmt.Errorf("sync package: %w", err)
	}
	result := &SyncResult{FileKey: fileKey}

	err = r.s.withTx(ctx, func(tx dialect.Tx) error {
		prev, err := getPackage(ctx, tx, fileKey)
		if err != nil {
			return fmt.Errorf("read package: %w", err)
		}
		if prev == nil {
			result.Created = true
		} else {
			var conceptIDs []string
			if prev.patternHash != next.patternHash {
				result.ResetAll = true
				for id, c := range prev.rowConcepts {
					result.ChangedRowIDs = append(result.ChangedRowIDs, id)
					conceptIDs = append(conceptIDs, c)
				}
			} else {
				for id, h := range prev.rowHashes {
					if next.rowHashes[id] != h {
						result.ChangedRowIDs = append(result.ChangedRowIDs, id)
						conceptIDs = append(conceptIDs, prev.rowConcepts[id])
					}
				}
			}
			sort.Strings(result.ChangedRowIDs)
			if result.ResetAll {
				if err := purgeQuiz(ctx, tx, fileKey); err != nil {
					return err
				}
			} else if len(result.ChangedRowIDs) > 0 {
				if err := purgeRows(ctx, tx, fileKey, result.ChangedRowIDs); err != nil {
					return err
				}
			}
			if err := purgeConcepts(ctx, tx, fileKey, uniqueStrings(conceptIDs)); err != nil {
				return err
			}
		}
		return putPackage(ctx, tx, fileKey, next)
	})
	if err != nil {
		return nil, fmt.Errorf("sync package: %w", err)
	}
	return result, nil
}

func putPackage(ctx context.Context, ex dialect.ExecQuerier, fileKey string, rec *packageRecord) error {
	hashes, err := marshalText(rec.rowHashes)
	if err != nil {
		return err
	}
	concepts, err := marshalText(rec.rowConcepts)
	if err != nil {
		return err
	}
	patternIDs, err := marshalText(rec.patternIDs)
	if err != nil {
		return err
	}
	query, args := sqlb.Insert(tablePackages).
		Columns("package_id", "content_hash", "pattern_hash", "row_hashes", "row_concepts", "pattern_ids", "updated_at").
		Values(fileKey, rec.contentHash, rec.patternHash, hashes, concepts, patternIDs, time.Now().UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("package_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := execBuilt(ctx, ex, query, args); err != nil {
		return fmt.Errorf("write package: %w", err)
	}
	return nil
}

func (r *packageRepo) PurgeQuiz(ctx context.Context, fileKey string) error {
	err := r.s.withTx(ctx, func(tx dialect.Tx) error {
		prev, err := getPackage(ctx, tx, fileKey)
		if err != nil {
			return err
		}
		if err := purgeQuiz(ctx, tx, fileKey); err != nil {
			return err
		}
		if prev != nil {
			var concepts []string
			for _, c := range prev.rowConcepts {
				concepts = append(concepts, c)
			}
			if err := purgeConcepts(ctx, tx, fileKey, uniqueStrings(concepts)); err != nil {
				return err
			}
		}
		query, args := sqlb.Delete(tablePackages).Where(entsql.EQ("package_id", fileKey)).Query()
		_, err = execBuilt(ctx, tx, query, args)
		return err
	})
	if err != nil {
		return fmt.Errorf("purge quiz %s: %w", fileKey, err)
	}
	return nil
}

// quizTables hold per-question records keyed by quiz_id and question_id.
var quizTables = []string{tableSchedule, tableQuestions, tableAttempts}

func purgeQuiz(ctx context.Context, ex dialect.ExecQuerier, fileKey string) error {
	for _, table := range quizTables {
		query, args := sqlb.Delete(table).Where(entsql.EQ("quiz_id", fileKey)).Query()
		if _, err := execBuilt(ctx, ex, query, args); err != nil {
			return fmt.Errorf("purge %s: %w", table, err)
		}
	}
	return nil
}

// purgeRows removes records of questions about the given rows. Question ids
// end in "::<rowId>"; row ids are case-sensitive, so the suffix is matched
// here rather than with LIKE.
func purgeRows(ctx context.Context, ex dialect.ExecQuerier, fileKey string, rowIDs []string) error {
	for _, table := range quizTables {
		query, args := sqlb.Select("question_id").Distinct().
			From(sqlb.Table(table)).
			Where(entsql.EQ("quiz_id", fileKey)).
			Query()
		var doomed []any
		err := queryEach(ctx, ex, query, args, func(rows *entsql.Rows) error {
			var qid string
			if err := rows.Scan(&qid); err != nil {
				return err
			}
			if questionOfRows(qid, rowIDs) {
				doomed = append(doomed, qid)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("read %s rows: %w", table, err)
		}
		if len(doomed) == 0 {
			continue
		}
		query, args = sqlb.Delete(table).
			Where(entsql.And(entsql.EQ("quiz_id", fileKey), entsql.In("question_id", doomed...))).
			Query()
		if _, err := execBuilt(ctx, ex, query, args); err != nil {
			return fmt.Errorf("purge %s rows: %w", table, err)
		}
	}
	return nil
}

func questionOfRows(questionID string, rowIDs []string) bool {
	for _, id := range rowIDs {
		if strings.HasSuffix(questionID, "::"+id) {
			return true
		}
	}
	return false
}

// purgeConcepts drops concept and confusion stats of conceptIDs. Concept
// ids are shared across quizzes, so ids still used by another package are
// kept.
func purgeConcepts(ctx context.Context, ex dialect.ExecQuerier, fileKey string, conceptIDs []string) error {
	if len(conceptIDs) == 0 {
		return nil
	}
	shared, err := conceptsOutside(ctx, ex, fileKey)
	if err != nil {
		return fmt.Errorf("read shared concepts: %w", err)
	}
	args := make([]any, 0, len(conceptIDs))
	for _, id := range conceptIDs {
		if !shared[id] {
			args = append(args, id)
		}
	}
	if len(args) == 0 {
		return nil
	}
	for _, table := range []string{tableConfusion, tableConceptStats} {
		query, qargs := sqlb.Delete(table).Where(entsql.In("concept_id", args...)).Query()
		if _, err := execBuilt(ctx, ex, query, qargs); err != nil {
			return fmt.Errorf("purge %s: %w", table, err)
		}
	}
	return nil
}

// conceptsOutside returns the concept ids referenced by packages other than
// fileKey.
func conceptsOutside(ctx context.Context, ex dialect.ExecQuerier, fileKey string) (map[string]bool, error) {
	query, args := sqlb.Select("row_concepts").
		From(sqlb.Table(tablePackages)).
		Where(entsql.NEQ("package_id", fileKey)).
		Query()
	out := make(map[string]bool)
	err := queryEach(ctx, ex, query, args, func(rows *entsql.Rows) error {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		var concepts map[string]string
		if err := unmarshalText(raw, &concepts); err != nil {
			return err
		}
		for _, c := range concepts {
			out[c] = true
		}
		return nil
	})
	return out, err
}
