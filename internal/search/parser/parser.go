// Package parser turns a free-form query string into a validated
// query.Spec. All syntactic and field/operator-compatibility validation
// happens here, up front, so the executor never sees malformed input.
//
// The language is deliberately flat: a sequence of filter expressions
// joined by a single uniform AND or OR (no parenthesized nesting), with
// optional trailing ORDER BY / LIMIT / GROUP BY clauses. Parsing is a
// quote-aware tokenization followed by one linear pass.
package parser

import (
	"strconv"
	"strings"

	"github.com/petr-muller/taiga-query/internal/search/grammar"
	"github.com/petr-muller/taiga-query/internal/search/query"
)

// operatorSymbols are the characters an inline symbolic operator may be
// spelled with, as in points:>5 or subject:~roadmap.
const operatorSymbols = "<>=!~"

// Parse parses queryText against the field catalogue of the given entity
// type. It is a pure function of its inputs and the static grammar tables;
// on failure it returns a *SyntaxError and a nil spec.
func Parse(queryText string, entityType query.EntityType) (*query.Spec, error) {
	trimmed := strings.TrimSpace(queryText)
	if trimmed == "" {
		return nil, syntaxErrorf("", 0, "query must not be empty")
	}

	tokens, err := tokenize(queryText)
	if err != nil {
		return nil, err
	}

	spec := &query.Spec{EntityType: entityType}

	var sawAnd, sawOr bool
	negateNext := false
	sawTrailing := false

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		upper := strings.ToUpper(tok.text)

		switch upper {
		case "AND":
			sawAnd = true
			if sawOr {
				return nil, syntaxErrorf(tok.text, tok.pos, "cannot mix AND and OR in one query")
			}
			continue
		case "OR":
			sawOr = true
			if sawAnd {
				return nil, syntaxErrorf(tok.text, tok.pos, "cannot mix AND and OR in one query")
			}
			continue
		case "NOT":
			negateNext = true
			continue
		case "ORDER":
			if negateNext {
				return nil, syntaxErrorf(tok.text, tok.pos, "NOT must precede a filter expression")
			}
			consumed, err := parseOrderBy(tokens, i, entityType, spec)
			if err != nil {
				return nil, err
			}
			i += consumed
			sawTrailing = true
			continue
		case "GROUP":
			if negateNext {
				return nil, syntaxErrorf(tok.text, tok.pos, "NOT must precede a filter expression")
			}
			consumed, err := parseGroupBy(tokens, i, entityType, spec)
			if err != nil {
				return nil, err
			}
			i += consumed
			sawTrailing = true
			continue
		case "LIMIT":
			if negateNext {
				return nil, syntaxErrorf(tok.text, tok.pos, "NOT must precede a filter expression")
			}
			consumed, err := parseLimit(tokens, i, spec)
			if err != nil {
				return nil, err
			}
			i += consumed
			sawTrailing = true
			continue
		}

		if sawTrailing {
			return nil, syntaxErrorf(tok.text, tok.pos, "filter expressions must precede ORDER BY, GROUP BY and LIMIT")
		}

		clause, err := parseFilter(tok, entityType)
		if err != nil {
			return nil, err
		}
		clause.Negate = negateNext
		negateNext = false
		spec.Filters = append(spec.Filters, *clause)
	}

	if negateNext {
		return nil, syntaxErrorf("NOT", 0, "dangling NOT at end of query")
	}

	if len(spec.Filters) == 0 && spec.OrderBy == nil && spec.GroupBy == "" && spec.Limit == 0 {
		return nil, syntaxErrorf(trimmed, 0, "query contains no filter or clause")
	}

	spec.Logic = query.LogicAnd
	if sawOr {
		spec.Logic = query.LogicOr
	}

	return spec, nil
}

// parseOrderBy consumes `ORDER BY field [ASC|DESC]` starting at tokens[i]
// and returns how many extra tokens it consumed.
func parseOrderBy(tokens []token, i int, entityType query.EntityType, spec *query.Spec) (int, error) {
	tok := tokens[i]
	if spec.OrderBy != nil {
		return 0, syntaxErrorf(tok.text, tok.pos, "duplicate ORDER BY clause")
	}
	if i+2 >= len(tokens) || !strings.EqualFold(tokens[i+1].text, "BY") {
		return 0, syntaxErrorf(tok.text, tok.pos, "ORDER must be followed by BY and a field name")
	}

	fieldTok := tokens[i+2]
	field, err := resolveField(fieldTok, entityType)
	if err != nil {
		return 0, err
	}

	orderBy := &query.OrderBy{Field: field, Direction: query.Ascending}
	consumed := 2

	if i+3 < len(tokens) {
		switch strings.ToUpper(tokens[i+3].text) {
		case "ASC":
			consumed = 3
		case "DESC":
			orderBy.Direction = query.Descending
			consumed = 3
		}
	}

	spec.OrderBy = orderBy
	return consumed, nil
}

// parseGroupBy consumes `GROUP BY field` starting at tokens[i].
func parseGroupBy(tokens []token, i int, entityType query.EntityType, spec *query.Spec) (int, error) {
	tok := tokens[i]
	if spec.GroupBy != "" {
		return 0, syntaxErrorf(tok.text, tok.pos, "duplicate GROUP BY clause")
	}
	if i+2 >= len(tokens) || !strings.EqualFold(tokens[i+1].text, "BY") {
		return 0, syntaxErrorf(tok.text, tok.pos, "GROUP must be followed by BY and a field name")
	}

	field, err := resolveField(tokens[i+2], entityType)
	if err != nil {
		return 0, err
	}

	spec.GroupBy = field
	return 2, nil
}

// parseLimit consumes `LIMIT n` starting at tokens[i].
func parseLimit(tokens []token, i int, spec *query.Spec) (int, error) {
	tok := tokens[i]
	if spec.Limit != 0 {
		return 0, syntaxErrorf(tok.text, tok.pos, "duplicate LIMIT clause")
	}
	if i+1 >= len(tokens) {
		return 0, syntaxErrorf(tok.text, tok.pos, "LIMIT must be followed by a number")
	}

	limitTok := tokens[i+1]
	limit, err := strconv.Atoi(limitTok.text)
	if err != nil {
		return 0, syntaxErrorf(limitTok.text, limitTok.pos, "LIMIT must be numeric")
	}
	if limit <= 0 {
		return 0, syntaxErrorf(limitTok.text, limitTok.pos, "LIMIT must be positive")
	}

	spec.Limit = limit
	return 1, nil
}

// resolveField lowercases, alias-resolves and catalogue-checks a field
// name token.
func resolveField(tok token, entityType query.EntityType) (string, error) {
	name := strings.ToLower(tok.text)
	if canonical, ok := grammar.FieldAliases[name]; ok {
		name = canonical
	}
	if _, ok := grammar.FieldClass(entityType, name); !ok {
		return "", syntaxErrorf(tok.text, tok.pos, "unknown field for %s", entityType)
	}
	return name, nil
}

// parseFilter parses one `field:value`, `field:op:value` or `field:a..b`
// expression into a FilterClause.
func parseFilter(tok token, entityType query.EntityType) (*query.FilterClause, error) {
	colon := strings.IndexRune(tok.text, ':')
	if colon <= 0 {
		return nil, syntaxErrorf(tok.text, tok.pos, "expected field:value or field:operator:value")
	}

	fieldTok := token{text: tok.text[:colon], pos: tok.pos}
	field, err := resolveField(fieldTok, entityType)
	if err != nil {
		return nil, err
	}
	class, _ := grammar.FieldClass(entityType, field)

	rest := tok.text[colon+1:]
	if rest == "" {
		return nil, syntaxErrorf(tok.text, tok.pos, "missing value for field %q", field)
	}

	op, operand, err := splitOperator(tok, field, class, rest)
	if err != nil {
		return nil, err
	}

	if !grammar.Compatible(class, op) {
		return nil, syntaxErrorf(tok.text, tok.pos, "operator %q is not applicable to field %q", op, field)
	}

	clause := &query.FilterClause{Field: field, Operator: op}

	if grammar.UnaryOperators.Has(op) {
		if operand != "" {
			return nil, syntaxErrorf(tok.text, tok.pos, "operator %q takes no value", op)
		}
		return clause, nil
	}

	if operand == "" {
		return nil, syntaxErrorf(tok.text, tok.pos, "operator %q requires a value", op)
	}

	if grammar.ListOperators.Has(op) {
		values, err := parseList(tok, operand)
		if err != nil {
			return nil, err
		}
		if op == query.OpBetween && len(values) != 2 {
			return nil, syntaxErrorf(tok.text, tok.pos, "between requires exactly two values, got %d", len(values))
		}
		clause.Values = values
		return clause, nil
	}

	// Legacy range sugar: field:a..b is equivalent to field:between:[a,b].
	if op == query.OpEqual && !isQuoted(operand) {
		if low, high, ok := splitRange(operand); ok {
			clause.Operator = query.OpBetween
			clause.Values = []string{low, high}
			return clause, nil
		}
	}

	clause.Value = unquote(operand)
	return clause, nil
}

// splitOperator determines the operator of a filter expression and the raw
// operand text. The expression forms are, in order of precedence:
// an explicit field:op:value segment, a relative-time value on a date
// field (modified:>7d is a sentinel value, not an ordering), an inline
// symbolic operator (points:>5), a bare unary operator (assignee:empty),
// and finally an implicit equality.
func splitOperator(tok token, field string, class grammar.Class, rest string) (query.Operator, string, error) {
	// A quoted operand is always a literal for implicit equality.
	if strings.HasPrefix(rest, `"`) {
		return query.OpEqual, rest, nil
	}

	if segment := strings.IndexRune(rest, ':'); segment > 0 {
		name := strings.ToLower(rest[:segment])
		op, ok := grammar.OperatorAliases[name]
		if !ok {
			return "", "", syntaxErrorf(rest[:segment], tok.pos, "unknown operator")
		}
		return op, rest[segment+1:], nil
	}

	if class == grammar.Date && grammar.IsRelativeTime(rest) {
		return query.OpEqual, rest, nil
	}

	if strings.ContainsRune(operatorSymbols, rune(rest[0])) {
		run := 0
		for run < len(rest) && strings.ContainsRune(operatorSymbols, rune(rest[run])) {
			run++
		}
		symbol := rest[:run]
		op, ok := grammar.OperatorAliases[symbol]
		if !ok {
			return "", "", syntaxErrorf(symbol, tok.pos, "malformed operator")
		}
		return op, rest[run:], nil
	}

	if op, ok := grammar.OperatorAliases[strings.ToLower(rest)]; ok && grammar.UnaryOperators.Has(op) {
		return op, "", nil
	}

	return query.OpEqual, rest, nil
}

// parseList parses a bracketed [a,b,c] operand into its elements.
func parseList(tok token, operand string) ([]string, error) {
	if !strings.HasPrefix(operand, "[") || !strings.HasSuffix(operand, "]") {
		return nil, syntaxErrorf(operand, tok.pos, "expected a bracketed list like [a,b,c]")
	}

	inner := operand[1 : len(operand)-1]
	if strings.TrimSpace(inner) == "" {
		return nil, syntaxErrorf(operand, tok.pos, "list must not be empty")
	}

	parts := splitListElements(inner)
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		element := unquote(strings.TrimSpace(part))
		if element == "" {
			return nil, syntaxErrorf(operand, tok.pos, "list contains an empty element")
		}
		values = append(values, element)
	}
	return values, nil
}

// splitListElements splits list contents on commas outside double quotes.
func splitListElements(inner string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false

	for _, r := range inner {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == ',' && !inQuotes:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	parts = append(parts, current.String())
	return parts
}

// splitRange recognizes the a..b range sugar. Both sides must be
// non-empty for the sugar to apply; anything else stays a plain value.
func splitRange(operand string) (string, string, bool) {
	idx := strings.Index(operand, "..")
	if idx <= 0 || idx+2 >= len(operand) {
		return "", "", false
	}
	low := operand[:idx]
	high := operand[idx+2:]
	if strings.Contains(high, "..") {
		return "", "", false
	}
	return low, high, true
}
