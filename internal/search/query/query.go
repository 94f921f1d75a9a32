// Package query defines the data contract between the query parser and the
// query executor: the parsed query specification and the result set shape.
package query

import (
	"time"

	"github.com/petr-muller/taiga-query/internal/taiga"
)

// EntityType selects which Taiga collection a query runs against.
type EntityType string

const (
	EntityIssue     EntityType = "issue"
	EntityUserStory EntityType = "userstory"
	EntityTask      EntityType = "task"
)

// ParseEntityType maps the user-facing entity names (including the plural
// spellings the CLI accepts) to an EntityType.
func ParseEntityType(s string) (EntityType, bool) {
	switch s {
	case "issue", "issues":
		return EntityIssue, true
	case "userstory", "userstories", "story", "stories", "us":
		return EntityUserStory, true
	case "task", "tasks":
		return EntityTask, true
	}
	return "", false
}

// Logic is the single boolean combinator applied across all top-level
// filter clauses of a query.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Operator identifies a filter comparison.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpContains     Operator = "contains"
	OpStartsWith   Operator = "startswith"
	OpEndsWith     Operator = "endswith"
	OpFuzzy        Operator = "~"
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
	OpBetween      Operator = "between"
	OpExists       Operator = "exists"
	OpNull         Operator = "null"
	OpEmpty        Operator = "empty"
	OpNotEmpty     Operator = "notempty"
)

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// FilterClause is one field/operator/value condition. Negation is carried
// on the clause itself rather than as a wrapper node; the executor applies
// it after evaluating the clause.
type FilterClause struct {
	// Field is the canonical field name; aliases are resolved at parse time.
	Field string
	// Operator is the comparison to apply.
	Operator Operator
	// Value is the comparison operand. Unset for the unary operators
	// (exists, null, empty, notempty).
	Value string
	// Values holds the operand list for in/not_in/between.
	Values []string
	// Negate inverts the clause result (the NOT prefix).
	Negate bool
}

// OrderBy names a sort field and direction.
type OrderBy struct {
	Field     string
	Direction Direction
}

// Spec is a parsed, validated query. It is immutable once produced by the
// parser, constructed fresh for every query invocation, and never cached.
type Spec struct {
	EntityType EntityType
	// Filters preserves the clause order of the query text. Order carries
	// no evaluation semantics but keeps diagnostics readable.
	Filters []FilterClause
	Logic   Logic
	OrderBy *OrderBy
	// Limit caps the result count; zero means no limit.
	Limit   int
	GroupBy string
}

// Group is one bucket of a grouped result set.
type Group struct {
	// Value is the stringified group key; records with no resolvable value
	// bucket under the literal "undefined".
	Value string          `yaml:"value"`
	Count int             `yaml:"count"`
	Items []*taiga.Record `yaml:"items"`
}

// ResultSet is the outcome of executing a query: the matching records (or
// groups when GROUP BY was requested) plus execution metadata.
type ResultSet struct {
	Results []*taiga.Record `yaml:"results,omitempty"`
	Groups  []Group         `yaml:"groups,omitempty"`
	// Total counts matching records after filtering, before limiting.
	Total      int           `yaml:"total"`
	Spec       *Spec         `yaml:"-"`
	ExecutedAt time.Time     `yaml:"executed_at"`
	Took       time.Duration `yaml:"took"`
}

// Grouped reports whether the result set is partitioned into groups.
func (r *ResultSet) Grouped() bool {
	return r.Spec != nil && r.Spec.GroupBy != ""
}

// Stats summarizes a validated query for callers that only want to check
// syntax and inspect query shape without executing anything.
type Stats struct {
	Clauses    int      `yaml:"clauses"`
	Operators  []string `yaml:"operators"`
	Logic      Logic    `yaml:"logic"`
	Negations  int      `yaml:"negations"`
	HasOrderBy bool     `yaml:"has_order_by"`
	HasGroupBy bool     `yaml:"has_group_by"`
	HasLimit   bool     `yaml:"has_limit"`
	// Complexity is a coarse score: one point per clause, plus one each
	// for ordering, grouping and limiting.
	Complexity int `yaml:"complexity"`
}
