package executor

import (
	"strconv"
	"strings"
	"time"

	"github.com/petr-muller/taiga-query/internal/search/grammar"
	"github.com/petr-muller/taiga-query/internal/taiga"
)

// upcomingWindow is how far ahead due_date:upcoming looks.
const upcomingWindow = 7 * 24 * time.Hour

// evalSpecial evaluates a catalogue-declared special value for an
// equality clause, bypassing the generic operator switch. The second
// result reports whether the (field, value) pair was actually handled
// here; when false the caller falls through to the generic path.
func evalSpecial(record *taiga.Record, field string, class grammar.Class, value string, resolved any, now time.Time) (bool, bool) {
	sentinel := strings.ToLower(value)

	if values, ok := grammar.SpecialValues[field]; ok && values.Has(sentinel) {
		switch field {
		case "milestone", "epic", "assignee", "owner":
			return evalPresence(field, sentinel, resolved, record), true
		case "due_date":
			return evalDueDate(sentinel, resolved, record, now), true
		case "blocked":
			return evalBoolSentinel(sentinel, record.IsBlocked), true
		case "closed":
			return evalBoolSentinel(sentinel, record.IsClosed), true
		}
	}

	if class == grammar.Date && grammar.IsRelativeTime(value) {
		return evalRelativeTime(sentinel, resolved, now), true
	}

	return false, false
}

// evalPresence handles the null/*/active/closed sentinels on relational
// fields. `milestone:active` matches any record with a milestone — the
// sentinel asks "is there a sprint", not "is the sprint currently
// running".
func evalPresence(field, sentinel string, resolved any, record *taiga.Record) bool {
	present := !isEmpty(resolved)
	switch sentinel {
	case "null":
		return !present
	case "*", "active":
		return present
	case "closed":
		return present && record.IsClosed
	}
	return false
}

// evalDueDate handles the due_date sentinels. `past` means the due date
// exists, lies strictly before now and the record is not closed;
// `upcoming` means it falls within the next seven days, inclusive.
func evalDueDate(sentinel string, resolved any, record *taiga.Record, now time.Time) bool {
	due, hasDue := toDate(resolved)
	switch sentinel {
	case "null":
		return !hasDue
	case "past":
		return hasDue && due.Before(now) && !record.IsClosed
	case "upcoming":
		return hasDue && !due.Before(now) && !due.After(now.Add(upcomingWindow))
	}
	return false
}

func evalBoolSentinel(sentinel string, flag bool) bool {
	return (sentinel == "true") == flag
}

// evalRelativeTime handles the relative-time vocabulary on date fields:
// named keywords (today, this_week, last_month, ...) and day offsets
// (7d and <7d match within the window, >7d matches older).
func evalRelativeTime(sentinel string, resolved any, now time.Time) bool {
	value, ok := toDate(resolved)
	if !ok {
		return false
	}

	switch sentinel {
	case "today":
		return sameDay(value, now)
	case "yesterday":
		return sameDay(value, now.AddDate(0, 0, -1))
	case "this_week":
		start := weekStart(now)
		return !value.Before(start) && value.Before(start.AddDate(0, 0, 7))
	case "last_week":
		start := weekStart(now).AddDate(0, 0, -7)
		return !value.Before(start) && value.Before(start.AddDate(0, 0, 7))
	case "this_month":
		return value.Year() == now.Year() && value.Month() == now.Month()
	case "last_month":
		previous := now.AddDate(0, -1, 0)
		return value.Year() == previous.Year() && value.Month() == previous.Month()
	}

	// Day-offset forms: 7d, <7d (within the last N days), >7d (older).
	offset := sentinel
	older := false
	switch offset[0] {
	case '>':
		older = true
		offset = offset[1:]
	case '<':
		offset = offset[1:]
	}
	days, err := strconv.Atoi(strings.TrimSuffix(offset, "d"))
	if err != nil {
		return false
	}

	cutoff := now.AddDate(0, 0, -days)
	if older {
		return value.Before(cutoff)
	}
	return !value.Before(cutoff) && !value.After(now)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// weekStart returns midnight on the Monday of t's week.
func weekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	year, month, day := t.AddDate(0, 0, -(weekday - 1)).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
