package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnknownDatabase = errors.New("unknown database")

	// Query engine errors. Callers wrap these with context; match with errors.Is.
	ErrTemplateSyntax     = errors.New("template syntax error")
	ErrMissingParameter   = errors.New("missing parameter")
	ErrParameterType      = errors.New("invalid parameter type")
	ErrAmbiguousVariable  = errors.New("ambiguous variable type")
	ErrNoRows             = errors.New("query returned no rows")
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed")
	ErrInjectionDetected  = errors.New("potential SQL injection detected")
)
