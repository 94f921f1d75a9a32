package parser

import (
	"strings"
	"unicode"
)

// token is one whitespace-delimited unit of the query text. Quoted strings
// and bracketed lists are kept intact, so a token may contain spaces.
type token struct {
	text string
	pos  int
}

// tokenize splits the query text into top-level tokens. Splitting happens
// on whitespace only outside double quotes and outside square brackets;
// the quotes and brackets themselves are preserved in the token text so
// the parser can tell quoted literals from bare words.
func tokenize(text string) ([]token, error) {
	var tokens []token
	var current strings.Builder

	start := -1
	inQuotes := false
	depth := 0
	quotePos := 0

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, token{text: current.String(), pos: start})
			current.Reset()
			start = -1
		}
	}

	for i, r := range text {
		switch {
		case r == '"':
			if inQuotes {
				inQuotes = false
			} else {
				inQuotes = true
				quotePos = i
			}
			if start < 0 {
				start = i
			}
			current.WriteRune(r)
		case r == '[' && !inQuotes:
			depth++
			if start < 0 {
				start = i
			}
			current.WriteRune(r)
		case r == ']' && !inQuotes:
			if depth > 0 {
				depth--
			}
			current.WriteRune(r)
		case unicode.IsSpace(r) && !inQuotes && depth == 0:
			flush()
		default:
			if start < 0 {
				start = i
			}
			current.WriteRune(r)
		}
	}

	if inQuotes {
		return nil, syntaxErrorf(text[quotePos:], quotePos, "unterminated string literal")
	}
	flush()

	return tokens, nil
}

// unquote strips a single pair of surrounding double quotes, if present.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// isQuoted reports whether the value is a double-quoted literal.
func isQuoted(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)
}
