// Package executor evaluates a parsed query.Spec against the record set
// of one project. The pipeline is a single linear pass — fetch, filter,
// sort, group, limit — with no retained state between executions; records
// are read-only snapshots and are never mutated.
package executor

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petr-muller/taiga-query/internal/search/grammar"
	"github.com/petr-muller/taiga-query/internal/search/query"
	"github.com/petr-muller/taiga-query/internal/taiga"
)

// Fetcher is the data-access collaborator. Implementations must resolve
// pagination internally and return complete collections.
type Fetcher interface {
	ListIssues(ctx context.Context, projectID int) ([]*taiga.Record, error)
	ListUserStories(ctx context.Context, projectID int) ([]*taiga.Record, error)
	ListStoryTasks(ctx context.Context, userStoryID int) ([]*taiga.Record, error)
}

// Executor runs parsed queries. It holds no cross-query state beyond its
// collaborators, so a single Executor is safe for concurrent use.
type Executor struct {
	fetcher Fetcher
	now     func() time.Time
}

// New creates an Executor backed by the given data-access collaborator.
func New(fetcher Fetcher) *Executor {
	return &Executor{
		fetcher: fetcher,
		now:     time.Now,
	}
}

// Execute runs the query pipeline and returns the result set with
// execution metadata. Collaborator failures are wrapped in an
// ExecutionError; a spec that reached this point cannot fail
// syntactically.
func (e *Executor) Execute(ctx context.Context, spec *query.Spec, projectID int) (*query.ResultSet, error) {
	started := e.now()

	records, err := e.fetch(ctx, spec.EntityType, projectID)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}

	filtered := e.filter(records, spec)
	e.sortRecords(filtered, spec.OrderBy)

	result := &query.ResultSet{
		Total:      len(filtered),
		Spec:       spec,
		ExecutedAt: started,
	}

	if spec.GroupBy != "" {
		groups := groupRecords(filtered, spec.GroupBy)
		if spec.Limit > 0 && len(groups) > spec.Limit {
			groups = groups[:spec.Limit]
		}
		result.Groups = groups
	} else {
		if spec.Limit > 0 && len(filtered) > spec.Limit {
			filtered = filtered[:spec.Limit]
		}
		result.Results = filtered
	}

	result.Took = e.now().Sub(started)
	return result, nil
}

// fetch obtains the candidate record set. Issues and user stories are one
// listing each; tasks fan out into one listing per user story, awaited
// sequentially, where a failed story listing is logged and skipped rather
// than failing the whole query.
func (e *Executor) fetch(ctx context.Context, entity query.EntityType, projectID int) ([]*taiga.Record, error) {
	switch entity {
	case query.EntityIssue:
		return e.fetcher.ListIssues(ctx, projectID)
	case query.EntityUserStory:
		return e.fetcher.ListUserStories(ctx, projectID)
	case query.EntityTask:
		stories, err := e.fetcher.ListUserStories(ctx, projectID)
		if err != nil {
			return nil, err
		}
		var tasks []*taiga.Record
		for _, story := range stories {
			storyTasks, err := e.fetcher.ListStoryTasks(ctx, story.ID)
			if err != nil {
				logrus.WithError(err).Warnf("cannot fetch tasks for user story #%d, skipping", story.Ref)
				continue
			}
			tasks = append(tasks, storyTasks...)
		}
		return tasks, nil
	}
	return nil, nil
}

// filter keeps the records for which the clause results combine to true
// under the spec's logic: all clauses for AND, any clause for OR. A query
// without filters keeps everything.
func (e *Executor) filter(records []*taiga.Record, spec *query.Spec) []*taiga.Record {
	if len(spec.Filters) == 0 {
		return records
	}

	now := e.now()
	matched := make([]*taiga.Record, 0, len(records))
	for _, record := range records {
		if e.matches(record, spec, now) {
			matched = append(matched, record)
		}
	}
	return matched
}

func (e *Executor) matches(record *taiga.Record, spec *query.Spec, now time.Time) bool {
	for _, clause := range spec.Filters {
		result := e.evaluate(record, spec.EntityType, clause, now)
		if clause.Negate {
			result = !result
		}
		if spec.Logic == query.LogicOr {
			if result {
				return true
			}
		} else if !result {
			return false
		}
	}
	return spec.Logic != query.LogicOr
}

// evaluate applies one clause to one record. Special sentinel values are
// dispatched before the generic operator switch runs.
func (e *Executor) evaluate(record *taiga.Record, entity query.EntityType, clause query.FilterClause, now time.Time) bool {
	resolved := Resolve(record, clause.Field)
	class, _ := grammar.FieldClass(entity, clause.Field)

	if clause.Operator == query.OpEqual {
		if result, handled := evalSpecial(record, clause.Field, class, clause.Value, resolved, now); handled {
			return result
		}
	}

	switch clause.Operator {
	case query.OpEqual:
		return equals(resolved, clause.Value)
	case query.OpNotEqual:
		return !equals(resolved, clause.Value)
	case query.OpGreater:
		cmp, ok := compareOrder(resolved, clause.Value)
		return ok && cmp > 0
	case query.OpGreaterEqual:
		cmp, ok := compareOrder(resolved, clause.Value)
		return ok && cmp >= 0
	case query.OpLess:
		cmp, ok := compareOrder(resolved, clause.Value)
		return ok && cmp < 0
	case query.OpLessEqual:
		cmp, ok := compareOrder(resolved, clause.Value)
		return ok && cmp <= 0
	case query.OpContains:
		return substringMatch(resolved, clause.Value, strings.Contains)
	case query.OpStartsWith:
		return substringMatch(resolved, clause.Value, strings.HasPrefix)
	case query.OpEndsWith:
		return substringMatch(resolved, clause.Value, strings.HasSuffix)
	case query.OpFuzzy:
		return fuzzyMatch(resolved, clause.Value)
	case query.OpIn:
		return inMatch(resolved, clause.Values)
	case query.OpNotIn:
		return !inMatch(resolved, clause.Values)
	case query.OpBetween:
		if len(clause.Values) != 2 {
			return false
		}
		return betweenMatch(resolved, clause.Values[0], clause.Values[1])
	case query.OpExists:
		return resolved != nil
	case query.OpNull:
		return resolved == nil
	case query.OpEmpty:
		return isEmpty(resolved)
	case query.OpNotEmpty:
		return !isEmpty(resolved)
	}

	// Unreachable with a parser-validated spec; degrade to a pass so one
	// bad clause does not drop the whole result set.
	logrus.Warnf("unsupported operator %q on field %q, treating filter as passing", clause.Operator, clause.Field)
	return true
}

// sortRecords stable-sorts in place on the resolved order-by field.
// Missing values sort first in both directions.
func (e *Executor) sortRecords(records []*taiga.Record, orderBy *query.OrderBy) {
	if orderBy == nil {
		return
	}

	collator := newCollator()
	keys := make(map[*taiga.Record]any, len(records))
	for _, record := range records {
		keys[record] = Resolve(record, orderBy.Field)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := keys[records[i]], keys[records[j]]
		if a == nil || b == nil {
			// nil-first is direction-independent
			return a == nil && b != nil
		}
		cmp := sortLess(collator, a, b)
		if orderBy.Direction == query.Descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

// groupRecords partitions post-sort records into buckets keyed by the
// stringified resolved value, preserving first-seen bucket order. Records
// with no resolvable value bucket under the literal "undefined".
func groupRecords(records []*taiga.Record, field string) []query.Group {
	index := make(map[string]int)
	var groups []query.Group

	for _, record := range records {
		resolved := Resolve(record, field)
		key := "undefined"
		if resolved != nil {
			key = stringify(resolved)
		}

		position, ok := index[key]
		if !ok {
			position = len(groups)
			index[key] = position
			groups = append(groups, query.Group{Value: key})
		}
		groups[position].Items = append(groups[position].Items, record)
		groups[position].Count++
	}

	return groups
}
