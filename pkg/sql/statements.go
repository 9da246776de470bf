package sql

import (
	"strings"

	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
)

// RequireSingleStatement strips one trailing semicolon from rendered SQL and
// rejects it with ErrMultipleStatements if another statement separator
// remains outside quotes and comments.
//
// Rendering substitutes literal text, so a guard on the rendered SQL catches
// separators that arrive through raw %(name)s or {{ name }} values.
func RequireSingleStatement(sqlQuery string) (string, error) {
	sqlQuery = stripTrailingSemicolon(strings.TrimSpace(sqlQuery))
	if hasStatementSeparator(sqlQuery) {
		return "", apperrors.ErrMultipleStatements
	}
	return sqlQuery, nil
}

// hasStatementSeparator reports whether sqlQuery has a semicolon outside of
// quoted strings, quoted identifiers and comments.
func hasStatementSeparator(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	var prev byte
	for i := 0; i < len(sqlQuery); i++ {
		c := sqlQuery[i]
		switch state {
		case stateNormal:
			switch {
			case c == ';':
				return true
			case c == '\'':
				state = stateSingleQuote
			case c == '"':
				state = stateDoubleQuote
			case c == '-' && i+1 < len(sqlQuery) && sqlQuery[i+1] == '-':
				state = stateLineComment
				i++
			case c == '/' && i+1 < len(sqlQuery) && sqlQuery[i+1] == '*':
				state = stateBlockComment
				i++
			}
		case stateSingleQuote:
			// A doubled quote leaves and immediately re-enters the string.
			if c == '\'' && prev != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if c == '"' && prev != '\\' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if c == '*' && i+1 < len(sqlQuery) && sqlQuery[i+1] == '/' {
				state = stateNormal
				i++
			}
		}
		prev = c
	}
	return false
}

func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if trimmed, ok := strings.CutSuffix(sqlQuery, ";"); ok {
		return strings.TrimRight(trimmed, " \t\n\r")
	}
	return sqlQuery
}
