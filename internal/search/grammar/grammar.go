// Package grammar is the single source of truth for the query language
// vocabulary: operators and their textual aliases, logic keywords, the
// relative-time vocabulary, per-entity field catalogues with their value
// classes, field aliases, and the per-field special-value sentinels.
//
// The package holds pure data. The parser consults it for validation and
// the executor consults it for special-value dispatch; neither mutates it.
package grammar

import (
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/petr-muller/taiga-query/internal/search/query"
)

// Class describes the value domain of a field, which decides operator
// compatibility.
type Class int

const (
	Text Class = iota
	Numeric
	Date
	Boolean
	// Relational fields hold a foreign key plus optional denormalized
	// extra info; they compare as text against names/slugs or IDs.
	Relational
)

// OperatorAliases maps every accepted operator spelling to its canonical
// operator.
var OperatorAliases = map[string]query.Operator{
	"=":          query.OpEqual,
	"==":         query.OpEqual,
	"eq":         query.OpEqual,
	"!=":         query.OpNotEqual,
	"ne":         query.OpNotEqual,
	">":          query.OpGreater,
	"gt":         query.OpGreater,
	">=":         query.OpGreaterEqual,
	"gte":        query.OpGreaterEqual,
	"<":          query.OpLess,
	"lt":         query.OpLess,
	"<=":         query.OpLessEqual,
	"lte":        query.OpLessEqual,
	"contains":   query.OpContains,
	"startswith": query.OpStartsWith,
	"endswith":   query.OpEndsWith,
	"~":          query.OpFuzzy,
	"fuzzy":      query.OpFuzzy,
	"in":         query.OpIn,
	"not_in":     query.OpNotIn,
	"between":    query.OpBetween,
	"exists":     query.OpExists,
	"null":       query.OpNull,
	"empty":      query.OpEmpty,
	"notempty":   query.OpNotEmpty,
}

// UnaryOperators take no operand; `field:empty` parses as an operator, not
// as an equality against the literal string.
var UnaryOperators = sets.New(
	query.OpExists, query.OpNull, query.OpEmpty, query.OpNotEmpty,
)

// ListOperators take a bracketed operand list.
var ListOperators = sets.New(
	query.OpIn, query.OpNotIn, query.OpBetween,
)

// textOperators only make sense against text-shaped values.
var textOperators = sets.New(
	query.OpContains, query.OpStartsWith, query.OpEndsWith, query.OpFuzzy,
)

// LogicKeywords are the recognized clause combinators. NOT is a per-clause
// prefix, not a combinator, but shares the keyword namespace.
var LogicKeywords = sets.New("AND", "OR", "NOT")

// relativeTimePattern matches the day-offset vocabulary: 7d, >7d, <30d.
var relativeTimePattern = regexp.MustCompile(`^[<>]?\d+d$`)

// relativeTimeKeywords are the named members of the relative-time
// vocabulary accepted as values on date fields.
var relativeTimeKeywords = sets.New(
	"today", "yesterday", "this_week", "last_week", "this_month", "last_month",
)

// IsRelativeTime reports whether the value belongs to the relative-time
// vocabulary (named keyword or day-offset form).
func IsRelativeTime(value string) bool {
	lower := strings.ToLower(value)
	return relativeTimeKeywords.Has(lower) || relativeTimePattern.MatchString(lower)
}

// FieldAliases maps accepted alternate field spellings to canonical names.
// The parser resolves these, so the executor only ever sees canonical names.
var FieldAliases = map[string]string{
	"sprint":     "milestone",
	"assigned":   "assignee",
	"created_by": "owner",
	"is_blocked": "blocked",
	"is_closed":  "closed",
	"title":      "subject",
	"story":      "user_story",
}

// commonFields are present on every entity type.
var commonFields = map[string]Class{
	"ref":         Numeric,
	"subject":     Text,
	"description": Text,
	"status":      Relational,
	"assignee":    Relational,
	"owner":       Relational,
	"milestone":   Relational,
	"tags":        Text,
	"blocked":     Boolean,
	"closed":      Boolean,
	"created":     Date,
	"modified":    Date,
	"finished":    Date,
	"due_date":    Date,
	"attachments": Numeric,
	"comments":    Numeric,
	"watchers":    Numeric,
}

var issueFields = map[string]Class{
	"priority": Relational,
	"severity": Relational,
	"type":     Relational,
}

var userStoryFields = map[string]Class{
	"points": Numeric,
	"epic":   Relational,
}

var taskFields = map[string]Class{
	"user_story": Relational,
}

// catalogues maps each entity type to its full field catalogue.
var catalogues = map[query.EntityType]map[string]Class{
	query.EntityIssue:     merge(commonFields, issueFields),
	query.EntityUserStory: merge(commonFields, userStoryFields),
	query.EntityTask:      merge(commonFields, taskFields),
}

func merge(base, extra map[string]Class) map[string]Class {
	merged := make(map[string]Class, len(base)+len(extra))
	for name, class := range base {
		merged[name] = class
	}
	for name, class := range extra {
		merged[name] = class
	}
	return merged
}

// FieldClass looks up the value class of a canonical field for an entity
// type. The second result is false when the field is not in the catalogue.
func FieldClass(entity query.EntityType, field string) (Class, bool) {
	catalogue, ok := catalogues[entity]
	if !ok {
		return Text, false
	}
	class, ok := catalogue[field]
	return class, ok
}

// Fields returns the sorted canonical field names for an entity type.
func Fields(entity query.EntityType) []string {
	catalogue := catalogues[entity]
	names := sets.New[string]()
	for name := range catalogue {
		names.Insert(name)
	}
	return sets.List(names)
}

// Compatible reports whether an operator is declared compatible with the
// value class of a field. Text and relational fields accept every operator
// (ordering degrades to raw string comparison, between evaluates to false);
// numeric and date fields reject the pure-text operators; boolean fields
// only support equality and the unary operators.
func Compatible(class Class, op query.Operator) bool {
	switch class {
	case Numeric, Date:
		return !textOperators.Has(op)
	case Boolean:
		return op == query.OpEqual || op == query.OpNotEqual ||
			UnaryOperators.Has(op)
	default:
		return true
	}
}

// SpecialValues maps canonical field names to their sentinel value sets.
// A (field, value) hit here short-circuits the generic operator path in
// the executor.
var SpecialValues = map[string]sets.Set[string]{
	"milestone": sets.New("active", "closed", "null", "*"),
	"epic":      sets.New("null", "*"),
	"assignee":  sets.New("null", "*"),
	"owner":     sets.New("null", "*"),
	"due_date":  sets.New("past", "upcoming", "null"),
	"blocked":   sets.New("true", "false"),
	"closed":    sets.New("true", "false"),
}

// IsSpecialValue reports whether value is a declared sentinel for field.
// Date fields additionally accept the relative-time vocabulary.
func IsSpecialValue(field string, class Class, value string) bool {
	lower := strings.ToLower(value)
	if values, ok := SpecialValues[field]; ok && values.Has(lower) {
		return true
	}
	return class == Date && IsRelativeTime(value)
}
