package sql

import "strings"

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeSQL collapses rendered SQL onto one line and removes the trailing
// commas left by one element tuples.
//
// Example:
//
//	NormalizeSQL("SELECT *\n  FROM t\n\n WHERE id IN (7,)")
//	// "SELECT * FROM t WHERE id IN (7)"
func NormalizeSQL(sqlQuery string) string {
	return StripSingletonCommas(CollapseLines(sqlQuery))
}

// CollapseLines trims every line, drops blank ones and joins the rest with a
// single space.
func CollapseLines(sqlQuery string) string {
	lines := strings.Split(lineBreaks.Replace(sqlQuery), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}

// StripSingletonCommas rewrites ",)" to ")" and then ", )" to " )".
// The rewrite is textual, so it also applies inside string literals.
func StripSingletonCommas(sqlQuery string) string {
	sqlQuery = strings.ReplaceAll(sqlQuery, ",)", ")")
	return strings.ReplaceAll(sqlQuery, ", )", " )")
}
