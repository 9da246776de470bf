package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
)

func TestRequireSingleStatement(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain select", input: "SELECT 1", expected: "SELECT 1"},
		{name: "trailing semicolon", input: "SELECT 1;", expected: "SELECT 1"},
		{name: "trailing semicolon and whitespace", input: "  SELECT 1 ;  \n", expected: "SELECT 1"},
		{name: "semicolon in string", input: "SELECT 'a;b'", expected: "SELECT 'a;b'"},
		{name: "semicolon in quoted identifier", input: `SELECT "a;b" FROM t`, expected: `SELECT "a;b" FROM t`},
		{name: "doubled quote", input: "SELECT 'it''s;here'", expected: "SELECT 'it''s;here'"},
		{name: "line comment", input: "SELECT 1 -- done; really\nFROM t", expected: "SELECT 1 -- done; really\nFROM t"},
		{name: "block comment", input: "SELECT /* a; b */ 1", expected: "SELECT /* a; b */ 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RequireSingleStatement(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRequireSingleStatement_Rejects(t *testing.T) {
	inputs := []string{
		"SELECT 1; SELECT 2",
		"SELECT 1;SELECT 2;",
		"SELECT * FROM users WHERE name = 'x'; DROP TABLE users",
		"SELECT 'a;b'; SELECT 1",
		"SELECT 1;;",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := RequireSingleStatement(input)
			assert.ErrorIs(t, err, apperrors.ErrMultipleStatements)
		})
	}
}
