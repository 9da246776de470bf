package sql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

// printfVariableRegex matches %(name)T references where T is one of s, d, l, a.
// Names are Unicode word characters or hyphens, so %(año)s is a variable.
var printfVariableRegex = regexp.MustCompile(`%\(([\p{L}\p{N}\p{M}\p{Pc}\-]+)\)([sdla])`)

var formatCharTypes = map[byte]models.VariableType{
	's': models.TypeString,
	'd': models.TypeInt,
	'l': models.TypeStringList,
	'a': models.TypeIntList,
}

// printfSyntax implements %(name)s style parameters.
//
// Before substitution the list markers ")l" and ")a" are rewritten to ")r",
// so %(ids)a renders with the literal conversion. The rewrite is textual and
// applies anywhere in the SQL.
type printfSyntax struct{}

func (printfSyntax) Mode() models.SyntaxMode {
	return models.SyntaxPrintf
}

// ExtractVariables finds all %(name)T references in order, duplicates included.
//
// Example:
//
//	vars, _ := printfSyntax{}.ExtractVariables("SELECT * FROM t WHERE id = %(id)d AND tag IN (%(tags)l)")
//	// vars == [int:id list:tags]
func (printfSyntax) ExtractVariables(sqlQuery string) ([]models.TypedVariable, error) {
	matches := printfVariableRegex.FindAllStringSubmatch(sqlQuery, -1)
	vars := make([]models.TypedVariable, 0, len(matches))
	for _, match := range matches {
		vars = append(vars, models.TypedVariable{
			Name: match[1],
			Type: formatCharTypes[match[2][0]],
		})
	}
	return vars, nil
}

func normalizeListMarkers(sqlQuery string) string {
	sqlQuery = strings.ReplaceAll(sqlQuery, ")l", ")r")
	return strings.ReplaceAll(sqlQuery, ")a", ")r")
}

// Render substitutes params into the SQL.
//
// Conversions:
//
//	%(n)s     raw text of the value (lists as for %(n)r)
//	%(n)d/i   integer; anything else is ErrParameterType
//	%(n)r     SQL literal: 7, 'O''Brien', or for lists the comma-joined
//	          literals without parentheses ('a', 'b'); an empty list is NULL
//	%%        a literal percent sign
//
// A parameter missing from params is ErrMissingParameter.
func (printfSyntax) Render(sqlQuery string, params map[string]any, opts RenderOptions) (string, error) {
	return scanPrintf(normalizeListMarkers(sqlQuery), func(name string, verb byte) (string, error) {
		value, ok := params[name]
		if !ok {
			return "", fmt.Errorf("%w: %s", apperrors.ErrMissingParameter, name)
		}
		return formatPrintfValue(name, verb, escapeValue(value, opts.Escape))
	})
}

// Validate checks that the SQL is well formed, that every reference is
// discoverable by ExtractVariables and that each name is used with one type.
func (p printfSyntax) Validate(sqlQuery string) error {
	vars, err := p.ExtractVariables(sqlQuery)
	if err != nil {
		return err
	}
	declared := make(map[string]models.VariableType, len(vars))
	for _, v := range vars {
		if prev, ok := declared[v.Name]; ok && prev != v.Type {
			return fmt.Errorf("%w: %s is used as both %s and %s",
				apperrors.ErrAmbiguousVariable, v.Name, prev.Prefix()+v.Name, v.String())
		}
		declared[v.Name] = v.Type
	}

	_, err = scanPrintf(normalizeListMarkers(sqlQuery), func(name string, verb byte) (string, error) {
		if !isPrintfVerb(verb) {
			return "", fmt.Errorf("%w: unsupported format character %q for %s", apperrors.ErrTemplateSyntax, verb, name)
		}
		if _, ok := declared[name]; !ok {
			return "", fmt.Errorf("%w: reference to %s must use one of the s, d, l or a conversions",
				apperrors.ErrTemplateSyntax, name)
		}
		return "", nil
	})
	return err
}

func isPrintfVerb(verb byte) bool {
	switch verb {
	case 's', 'd', 'i', 'r':
		return true
	}
	return false
}

// scanPrintf walks src, copying text and replacing each %(name)verb with the
// result of fn. "%%" becomes "%".
func scanPrintf(src string, fn func(name string, verb byte) (string, error)) (string, error) {
	var b strings.Builder
	b.Grow(len(src))

	for i := 0; i < len(src); i++ {
		c := src[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}

		if i+1 >= len(src) {
			return "", fmt.Errorf("%w: incomplete format at end of SQL", apperrors.ErrTemplateSyntax)
		}
		switch src[i+1] {
		case '%':
			b.WriteByte('%')
			i++
			continue
		case '(':
		default:
			return "", fmt.Errorf("%w: unsupported format %q at offset %d (write %%%% for a literal percent sign)",
				apperrors.ErrTemplateSyntax, src[i:i+2], i)
		}

		// Find the matching close paren; names may contain balanced parens.
		depth := 1
		j := i + 2
		for ; j < len(src) && depth > 0; j++ {
			switch src[j] {
			case '(':
				depth++
			case ')':
				depth--
			}
		}
		if depth != 0 {
			return "", fmt.Errorf("%w: incomplete format key at offset %d", apperrors.ErrTemplateSyntax, i)
		}
		if j >= len(src) {
			return "", fmt.Errorf("%w: incomplete format at offset %d", apperrors.ErrTemplateSyntax, i)
		}

		text, err := fn(src[i+2:j-1], src[j])
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		i = j
	}

	return b.String(), nil
}

func formatPrintfValue(name string, verb byte, value any) (string, error) {
	switch verb {
	case 's':
		if items, ok := toList(value); ok {
			return joinLiterals(items), nil
		}
		return scalarText(value), nil
	case 'd', 'i':
		n, ok := toInt64(value)
		if !ok {
			return "", fmt.Errorf("%w: %%(%s)%c requires an integer, got %T",
				apperrors.ErrParameterType, name, verb, value)
		}
		return strconv.FormatInt(n, 10), nil
	case 'r':
		if items, ok := toList(value); ok {
			return joinLiterals(items), nil
		}
		return literal(value), nil
	default:
		return "", fmt.Errorf("%w: unsupported format character %q for %s", apperrors.ErrTemplateSyntax, verb, name)
	}
}
