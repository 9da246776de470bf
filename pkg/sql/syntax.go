package sql

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

// EscapePolicy controls how interpolated values are escaped while rendering.
type EscapePolicy int

const (
	// EscapeNone inserts values verbatim. Rendered output is SQL, not HTML.
	EscapeNone EscapePolicy = iota
	// EscapeHTML HTML-escapes string values before insertion.
	EscapeHTML
)

// RenderOptions tunes a single render call. The zero value is the production default.
type RenderOptions struct {
	Escape EscapePolicy
	// Strict makes template rendering fail on parameters that are not supplied
	// instead of rendering them empty. Printf rendering is always strict.
	Strict bool
}

// ExtractOptions tunes variable extraction.
type ExtractOptions struct {
	// Deduplicate keeps only the first occurrence of each tagged variable.
	Deduplicate bool
}

// Syntax is one way of writing parameter references into query SQL.
type Syntax interface {
	// Mode identifies the syntax.
	Mode() models.SyntaxMode

	// ExtractVariables returns the typed variables referenced by sqlQuery in
	// order of appearance, duplicates included.
	ExtractVariables(sqlQuery string) ([]models.TypedVariable, error)

	// Render substitutes params into sqlQuery. Values must already be cast
	// to the types their variables declare.
	Render(sqlQuery string, params map[string]any, opts RenderOptions) (string, error)

	// Validate checks that sqlQuery parses and that every variable carries a
	// single, unambiguous type tag.
	Validate(sqlQuery string) error
}

var (
	printfMode   Syntax = printfSyntax{}
	templateMode Syntax = templateSyntax{}
)

// SyntaxFor returns the implementation for a syntax mode.
func SyntaxFor(mode models.SyntaxMode) (Syntax, error) {
	switch mode {
	case models.SyntaxPrintf:
		return printfMode, nil
	case models.SyntaxTemplate:
		return templateMode, nil
	default:
		return nil, fmt.Errorf("unsupported syntax mode: %s", mode)
	}
}

// GetVariables returns the typed variables referenced by a query definition.
func GetVariables(def *models.QueryDefinition, opts ExtractOptions) ([]models.TypedVariable, error) {
	syntax, err := SyntaxFor(def.Syntax)
	if err != nil {
		return nil, err
	}
	vars, err := syntax.ExtractVariables(def.SQL)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", def.Name, err)
	}
	if opts.Deduplicate {
		vars = DeduplicateVariables(vars)
	}
	return vars, nil
}

// RenderSQL renders a query definition with the given parameters using default options.
func RenderSQL(def *models.QueryDefinition, params map[string]any) (string, error) {
	return RenderSQLWithOptions(def, params, RenderOptions{})
}

// RenderSQLWithOptions renders a query definition with explicit render options.
func RenderSQLWithOptions(def *models.QueryDefinition, params map[string]any, opts RenderOptions) (string, error) {
	syntax, err := SyntaxFor(def.Syntax)
	if err != nil {
		return "", err
	}
	rendered, err := syntax.Render(def.SQL, params, opts)
	if err != nil {
		return "", fmt.Errorf("query %q: %w", def.Name, err)
	}
	return rendered, nil
}

// ValidateDefinition checks a query definition before it is accepted into a catalog.
func ValidateDefinition(def *models.QueryDefinition) error {
	syntax, err := SyntaxFor(def.Syntax)
	if err != nil {
		return err
	}
	if err := syntax.Validate(def.SQL); err != nil {
		return fmt.Errorf("query %q: %w", def.Name, err)
	}
	return nil
}

// DeduplicateVariables keeps the first occurrence of each tagged variable, preserving order.
func DeduplicateVariables(vars []models.TypedVariable) []models.TypedVariable {
	seen := make(map[models.TypedVariable]bool, len(vars))
	var out []models.TypedVariable
	for _, v := range vars {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
