package sql

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
)

// nullLiteral is substituted for an empty list so that "IN (...)" stays valid SQL.
const nullLiteral = "NULL"

// quoteString renders s as a single-quoted SQL string literal, doubling embedded quotes.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// toInt64 converts an integer-like parameter value. Floats are truncated the
// way printf %d truncates them; strings are rejected.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// toList returns the elements of a slice or array parameter value.
// Strings and byte slices are scalars, not lists.
func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case nil, string, []byte:
		return nil, false
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// scalarText renders a scalar the way it appears when interpolated as raw text.
func scalarText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case bool:
		return strconv.FormatBool(s)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case fmt.Stringer:
		return s.String()
	}
	if n, ok := toInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(v)
}

// literal renders a scalar as a SQL literal: numbers bare, everything else quoted.
func literal(v any) string {
	switch s := v.(type) {
	case nil:
		return nullLiteral
	case string:
		return quoteString(s)
	case []byte:
		return quoteString(string(s))
	case bool:
		if s {
			return "TRUE"
		}
		return "FALSE"
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	}
	if n, ok := toInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return quoteString(fmt.Sprint(v))
}

// joinLiterals renders list elements as comma-separated SQL literals.
func joinLiterals(items []any) string {
	if len(items) == 0 {
		return nullLiteral
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = literal(item)
	}
	return strings.Join(parts, ", ")
}

// intLiterals renders list elements as integers, failing on any non-integer element.
func intLiterals(name string, items []any) (string, error) {
	if len(items) == 0 {
		return nullLiteral, nil
	}
	parts := make([]string, len(items))
	for i, item := range items {
		n, ok := toInt64(item)
		if !ok {
			return "", fmt.Errorf("%w: %s[%d] must be an integer, got %T", apperrors.ErrParameterType, name, i, item)
		}
		parts[i] = strconv.FormatInt(n, 10)
	}
	return strings.Join(parts, ", "), nil
}

// tuple is a list value as seen by templates: it prints as a parenthesised
// tuple, "(1, 2)" or "('a',)", and still ranges and tests like a slice.
type tuple []any

func (t tuple) String() string {
	switch len(t) {
	case 0:
		return "(" + nullLiteral + ")"
	case 1:
		return "(" + literal(t[0]) + ",)"
	default:
		return "(" + joinLiterals(t) + ")"
	}
}

// escapeValue applies the escape policy to string values and to string
// elements of lists. Other values pass through unchanged.
func escapeValue(v any, policy EscapePolicy) any {
	if policy != EscapeHTML {
		return v
	}
	if s, ok := v.(string); ok {
		return html.EscapeString(s)
	}
	items, ok := toList(v)
	if !ok {
		return v
	}
	out := make([]any, len(items))
	for i, item := range items {
		if s, ok := item.(string); ok {
			out[i] = html.EscapeString(s)
		} else {
			out[i] = item
		}
	}
	return out
}
