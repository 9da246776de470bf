package models

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SyntaxMode selects how a query's SQL declares and receives its parameters.
type SyntaxMode int

const (
	// SyntaxPrintf uses %(name)s style references.
	SyntaxPrintf SyntaxMode = iota
	// SyntaxTemplate uses {{ name }} template actions.
	SyntaxTemplate
)

func (m SyntaxMode) String() string {
	switch m {
	case SyntaxPrintf:
		return "printf"
	case SyntaxTemplate:
		return "template"
	default:
		return fmt.Sprintf("SyntaxMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m SyntaxMode) MarshalText() ([]byte, error) {
	switch m {
	case SyntaxPrintf, SyntaxTemplate:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("invalid syntax mode %d", int(m))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value selects printf.
func (m *SyntaxMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "printf", "string":
		*m = SyntaxPrintf
	case "template", "templates":
		*m = SyntaxTemplate
	default:
		return fmt.Errorf("unknown syntax mode %q (expected printf or template)", string(text))
	}
	return nil
}

// VariableType is the type tag carried by a variable reference.
type VariableType int

const (
	TypeString VariableType = iota
	TypeInt
	TypeStringList
	TypeIntList
)

// Prefix returns the textual tag that precedes a variable name, e.g. "list:int:".
func (t VariableType) Prefix() string {
	switch t {
	case TypeInt:
		return "int:"
	case TypeStringList:
		return "list:"
	case TypeIntList:
		return "list:int:"
	default:
		return ""
	}
}

// IsList reports whether the variable expects a sequence of values.
func (t VariableType) IsList() bool {
	return t == TypeStringList || t == TypeIntList
}

// IsInt reports whether the variable (or its elements) are integers.
func (t VariableType) IsInt() bool {
	return t == TypeInt || t == TypeIntList
}

func (t VariableType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeStringList:
		return "list"
	case TypeIntList:
		return "list:int"
	default:
		return fmt.Sprintf("VariableType(%d)", int(t))
	}
}

// TypedVariable is a named parameter referenced by a query together with its type tag.
type TypedVariable struct {
	Name string
	Type VariableType
}

// String renders the variable in its tagged form: "ids", "int:id", "list:names", "list:int:ids".
func (v TypedVariable) String() string {
	return v.Type.Prefix() + v.Name
}

// MarshalText renders the tagged form so variable lists serialize as strings.
func (v TypedVariable) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ParseTypedVariable parses a tagged variable name such as "list:int:ids".
func ParseTypedVariable(s string) TypedVariable {
	switch {
	case strings.HasPrefix(s, "list:int:"):
		return TypedVariable{Name: s[len("list:int:"):], Type: TypeIntList}
	case strings.HasPrefix(s, "list:"):
		return TypedVariable{Name: s[len("list:"):], Type: TypeStringList}
	case strings.HasPrefix(s, "int:"):
		return TypedVariable{Name: s[len("int:"):], Type: TypeInt}
	default:
		return TypedVariable{Name: s, Type: TypeString}
	}
}

// QueryDefinition is an administrator-defined SQL template bound to a database.
type QueryDefinition struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description,omitempty"`
	SQL         string     `yaml:"sql" json:"sql"`
	Database    string     `yaml:"database" json:"database"`
	Syntax      SyntaxMode `yaml:"syntax" json:"syntax"`
}

// Row is a single result row keyed by column name in result-set column order.
// Setting an existing column again keeps its original position.
type Row = *orderedmap.OrderedMap[string, any]

// NewRow creates an empty row.
func NewRow() Row {
	return orderedmap.New[string, any]()
}

// RowColumns returns the column names of a row in order.
func RowColumns(row Row) []string {
	columns := make([]string, 0, row.Len())
	for pair := row.Oldest(); pair != nil; pair = pair.Next() {
		columns = append(columns, pair.Key)
	}
	return columns
}

// ExecutionResult holds the SQL that was sent to the database and the rows it returned.
type ExecutionResult struct {
	SQL  string `json:"sql"`
	Rows []Row  `json:"rows"`
	One  bool   `json:"one,omitempty"`
}

// Payload returns the value exposed to API callers: the single row when the
// query was run with return-one semantics, otherwise all rows.
func (r *ExecutionResult) Payload() any {
	if r.One {
		if len(r.Rows) == 0 {
			return nil
		}
		return r.Rows[0]
	}
	return r.Rows
}
