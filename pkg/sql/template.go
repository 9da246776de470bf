package sql

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	texttemplate "text/template"
	"text/template/parse"

	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

const templateName = "query"

// builtinFuncs are the text/template builtins. An identifier with one of
// these names is a function call, not a variable.
var builtinFuncs = map[string]bool{
	"and": true, "call": true, "html": true, "index": true, "slice": true,
	"js": true, "len": true, "not": true, "or": true, "print": true,
	"printf": true, "println": true, "urlquery": true,
	"eq": true, "ge": true, "gt": true, "le": true, "lt": true, "ne": true,
}

// taggedReferenceRegex finds variable references inside an action together
// with the type tag written in front of them.
var (
	actionRegex          = regexp.MustCompile(`(?s)\{\{.*?\}\}`)
	taggedReferenceRegex = regexp.MustCompile(`\.?(list:int:|list:|int:)?([\p{L}_][\p{L}\p{N}_]*)`)
)

// templateSyntax implements text/template style queries: {{ name }}, with
// optional int:, list: and list:int: type tags in front of a variable name.
//
// Tags only inform form generation and request casting. They are removed
// before the template is parsed, so {{ list:int:ids }} renders like {{ ids }}.
type templateSyntax struct{}

func (templateSyntax) Mode() models.SyntaxMode {
	return models.SyntaxTemplate
}

// stripTypeTags removes every "int:" and then every "list:" from the SQL.
func stripTypeTags(sqlQuery string) string {
	sqlQuery = strings.ReplaceAll(sqlQuery, "int:", "")
	return strings.ReplaceAll(sqlQuery, "list:", "")
}

// classifyVariable decides a variable's type from the raw SQL text.
// The checks run in order and the first substring hit wins.
func classifyVariable(sqlQuery, name string) models.TypedVariable {
	switch {
	case strings.Contains(sqlQuery, "list:int:"+name):
		return models.TypedVariable{Name: name, Type: models.TypeIntList}
	case strings.Contains(sqlQuery, "int:"+name):
		return models.TypedVariable{Name: name, Type: models.TypeInt}
	case strings.Contains(sqlQuery, "list:"+name):
		return models.TypedVariable{Name: name, Type: models.TypeStringList}
	default:
		return models.TypedVariable{Name: name, Type: models.TypeString}
	}
}

// ExtractVariables parses the template and returns every free variable
// reference in order of appearance, duplicates included, each tagged by
// classifyVariable.
//
// Example:
//
//	vars, _ := templateSyntax{}.ExtractVariables("SELECT {{ list:int:ids }} FROM t")
//	// vars == [list:int:ids]
func (templateSyntax) ExtractVariables(sqlQuery string) ([]models.TypedVariable, error) {
	names, err := templateVariableNames(stripTypeTags(sqlQuery))
	if err != nil {
		return nil, err
	}
	vars := make([]models.TypedVariable, 0, len(names))
	for _, name := range names {
		vars = append(vars, classifyVariable(sqlQuery, name))
	}
	return vars, nil
}

// Render executes the template with params.
//
// Scalars print as their raw text. Lists print as tuples: (1, 2), ('a',),
// or (NULL) when empty. Variables are reachable both as {{ name }} and as
// {{ .name }}. Missing variables render empty unless opts.Strict is set.
func (t templateSyntax) Render(sqlQuery string, params map[string]any, opts RenderOptions) (string, error) {
	src := stripTypeTags(sqlQuery)
	names, err := templateVariableNames(src)
	if err != nil {
		return "", err
	}
	names = uniqueNames(names)

	data := make(map[string]any, len(params)+len(names))
	for k, v := range params {
		data[k] = templateValue(v, opts.Escape)
	}

	funcs := make(texttemplate.FuncMap, len(names))
	for _, name := range names {
		if _, ok := data[name]; !ok {
			if opts.Strict {
				return "", fmt.Errorf("%w: %s", apperrors.ErrMissingParameter, name)
			}
			data[name] = ""
		}
		if tv := classifyVariable(sqlQuery, name); tv.Type == models.TypeIntList {
			if items, ok := toList(params[name]); ok {
				if _, err := intLiterals(name, items); err != nil {
					return "", err
				}
			}
		}
		if builtinFuncs[name] {
			continue
		}
		value := data[name]
		funcs[name] = func() any { return value }
	}

	tmpl, err := texttemplate.New(templateName).Funcs(funcs).Parse(src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrTemplateSyntax, err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrTemplateSyntax, err)
	}
	return b.String(), nil
}

// Validate parses the template and rejects variables whose type tags
// disagree with each other or with what ExtractVariables would report.
//
// Untagged references are compatible with any tag. The second check catches
// names that are suffixes of other tagged names: with "{{ int:sid }} {{ s }}"
// the untagged s would be read as int.
func (t templateSyntax) Validate(sqlQuery string) error {
	names, err := templateVariableNames(stripTypeTags(sqlQuery))
	if err != nil {
		return err
	}
	names = uniqueNames(names)
	known := make(map[string]bool, len(names))
	for _, name := range names {
		known[name] = true
	}

	tagged := make(map[string]map[models.VariableType]bool, len(names))
	for _, action := range actionRegex.FindAllString(sqlQuery, -1) {
		for _, m := range taggedReferenceRegex.FindAllStringSubmatch(action, -1) {
			name, tag := m[2], m[1]
			if !known[name] || tag == "" {
				continue
			}
			if tagged[name] == nil {
				tagged[name] = make(map[models.VariableType]bool)
			}
			tagged[name][tagType(tag)] = true
		}
	}

	for _, name := range names {
		types := tagged[name]
		if len(types) > 1 {
			return fmt.Errorf("%w: %s is written with conflicting type tags %s",
				apperrors.ErrAmbiguousVariable, name, describeTypes(name, types))
		}
		written := models.TypedVariable{Name: name, Type: models.TypeString}
		for typ := range types {
			written.Type = typ
		}
		if extracted := classifyVariable(sqlQuery, name); extracted != written {
			return fmt.Errorf("%w: %s is written as %s but reads as %s; rename one of the variables",
				apperrors.ErrAmbiguousVariable, name, written, extracted)
		}
	}
	return nil
}

func tagType(tag string) models.VariableType {
	switch tag {
	case "list:int:":
		return models.TypeIntList
	case "list:":
		return models.TypeStringList
	case "int:":
		return models.TypeInt
	default:
		return models.TypeString
	}
}

func describeTypes(name string, types map[models.VariableType]bool) string {
	tagged := make([]string, 0, len(types))
	for typ := range types {
		tagged = append(tagged, models.TypedVariable{Name: name, Type: typ}.String())
	}
	sort.Strings(tagged)
	return strings.Join(tagged, ", ")
}

// templateValue adapts a parameter for template execution.
func templateValue(v any, policy EscapePolicy) any {
	v = escapeValue(v, policy)
	if v == nil {
		return ""
	}
	if items, ok := toList(v); ok {
		return tuple(items)
	}
	return v
}

// templateVariableNames parses src and returns the names of its free
// variable references in order of appearance, repeats included. A free variable is a bare
// identifier that is not a builtin, or the first field of a .name reference.
func templateVariableNames(src string) ([]string, error) {
	trees := make(map[string]*parse.Tree)
	tree := parse.New(templateName)
	tree.Mode = parse.SkipFuncCheck | parse.ParseComments
	if _, err := tree.Parse(src, "", "", trees); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTemplateSyntax, err)
	}

	c := &variableCollector{
		trees:   trees,
		visited: map[string]bool{templateName: true},
	}
	c.walk(tree.Root)
	for _, name := range sortedTreeNames(trees) {
		if !c.visited[name] {
			c.visited[name] = true
			c.walk(trees[name].Root)
		}
	}
	return c.names, nil
}

func sortedTreeNames(trees map[string]*parse.Tree) []string {
	names := make([]string, 0, len(trees))
	for name := range trees {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type variableCollector struct {
	trees   map[string]*parse.Tree
	visited map[string]bool
	names   []string
}

func (c *variableCollector) add(name string) {
	c.names = append(c.names, name)
}

// uniqueNames keeps the first occurrence of each name.
func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	unique := names[:0:0]
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			unique = append(unique, name)
		}
	}
	return unique
}

func (c *variableCollector) walk(node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			c.walk(child)
		}
	case *parse.ActionNode:
		c.walk(n.Pipe)
	case *parse.IfNode:
		c.walkBranch(&n.BranchNode)
	case *parse.RangeNode:
		c.walkBranch(&n.BranchNode)
	case *parse.WithNode:
		c.walkBranch(&n.BranchNode)
	case *parse.TemplateNode:
		c.walk(n.Pipe)
		if t, ok := c.trees[n.Name]; ok && !c.visited[n.Name] {
			c.visited[n.Name] = true
			c.walk(t.Root)
		}
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			c.walk(cmd)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			c.walk(arg)
		}
	case *parse.ChainNode:
		c.walk(n.Node)
	case *parse.IdentifierNode:
		if !builtinFuncs[n.Ident] {
			c.add(n.Ident)
		}
	case *parse.FieldNode:
		if len(n.Ident) > 0 {
			c.add(n.Ident[0])
		}
	}
}

func (c *variableCollector) walkBranch(b *parse.BranchNode) {
	c.walk(b.Pipe)
	c.walk(b.List)
	c.walk(b.ElseList)
}
