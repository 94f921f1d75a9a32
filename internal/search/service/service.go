// Package service is the caller-facing surface of the query engine:
// Search parses and executes, Validate runs the parser alone.
package service

import (
	"context"
	"sort"

	"github.com/petr-muller/taiga-query/internal/search/executor"
	"github.com/petr-muller/taiga-query/internal/search/parser"
	"github.com/petr-muller/taiga-query/internal/search/query"
)

// Service orchestrates the query parser and executor.
type Service struct {
	executor *executor.Executor
}

// NewService creates a service backed by the given data-access
// collaborator.
func NewService(fetcher executor.Fetcher) *Service {
	return &Service{
		executor: executor.New(fetcher),
	}
}

// Search parses queryText and executes it against the project. Syntax
// errors surface before any network access happens: an invalid query
// never reaches the data-access collaborator.
func (s *Service) Search(ctx context.Context, projectID int, queryText string, entityType query.EntityType) (*query.ResultSet, error) {
	spec, err := parser.Parse(queryText, entityType)
	if err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, spec, projectID)
}

// Validate runs the parser alone, returning the parsed spec plus summary
// statistics. It never touches the network.
func (s *Service) Validate(queryText string, entityType query.EntityType) (*query.Spec, *query.Stats, error) {
	spec, err := parser.Parse(queryText, entityType)
	if err != nil {
		return nil, nil, err
	}
	return spec, Summarize(spec), nil
}

// Summarize computes the filter/operator/complexity statistics reported
// by Validate.
func Summarize(spec *query.Spec) *query.Stats {
	stats := &query.Stats{
		Clauses:    len(spec.Filters),
		Logic:      spec.Logic,
		HasOrderBy: spec.OrderBy != nil,
		HasGroupBy: spec.GroupBy != "",
		HasLimit:   spec.Limit > 0,
	}

	seen := make(map[string]bool)
	for _, clause := range spec.Filters {
		if clause.Negate {
			stats.Negations++
		}
		name := string(clause.Operator)
		if !seen[name] {
			seen[name] = true
			stats.Operators = append(stats.Operators, name)
		}
	}
	sort.Strings(stats.Operators)

	stats.Complexity = stats.Clauses
	if stats.HasOrderBy {
		stats.Complexity++
	}
	if stats.HasGroupBy {
		stats.Complexity++
	}
	if stats.HasLimit {
		stats.Complexity++
	}

	return stats
}
