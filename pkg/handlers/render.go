package handlers

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
	"github.com/ekaya-inc/ekaya-hangar/pkg/services"
)

//go:embed templates/*.html
var builtinTemplates embed.FS

// errUnknownTemplate is returned when ?template= names a template that does
// not exist under the templates directory or escapes it.
var errUnknownTemplate = errors.New("unknown template")

const customTemplateCacheSize = 64

var templateFuncs = template.FuncMap{
	"cell": formatCell,
}

// ResultSection is one binding's result as shown in HTML.
type ResultSection struct {
	Key     string
	SQL     string
	Columns []string
	Rows    [][]any
	One     bool
}

// PageData is the context every HTML template receives.
type PageData struct {
	Title       string
	URL         string
	Description string
	Variables   []string
	Sections    []ResultSection

	// Result is the same value the JSON format returns.
	Result *services.EndpointResult
}

// Renderer renders endpoint results as HTML, using the built-in templates
// or a named template from the configured directory.
type Renderer struct {
	dir     string
	results *template.Template
	form    *template.Template
	custom  *lru.Cache[string, *template.Template]
	logger  *zap.Logger
}

// NewRenderer parses the built-in templates. dir may be empty, in which case
// only the built-in templates are available.
func NewRenderer(dir string, logger *zap.Logger) (*Renderer, error) {
	results, err := template.New("default.html").Funcs(templateFuncs).ParseFS(builtinTemplates, "templates/default.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse default template: %w", err)
	}
	form, err := template.New("form.html").Funcs(templateFuncs).ParseFS(builtinTemplates, "templates/form.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse form template: %w", err)
	}
	custom, err := lru.New[string, *template.Template](customTemplateCacheSize)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		dir:     dir,
		results: results,
		form:    form,
		custom:  custom,
		logger:  logger.Named("render"),
	}, nil
}

// RenderResults writes page with the named template, or the built-in
// results template when name is empty. Nothing is written on error.
func (r *Renderer) RenderResults(w io.Writer, name string, page *PageData) error {
	tmpl := r.results
	if name != "" {
		var err error
		if tmpl, err = r.lookup(name); err != nil {
			return err
		}
	}
	return execute(w, tmpl, page)
}

// RenderForm writes the built-in parameter form for an endpoint.
func (r *Renderer) RenderForm(w io.Writer, page *PageData) error {
	return execute(w, r.form, page)
}

func execute(w io.Writer, tmpl *template.Template, page *PageData) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		return fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// lookup loads a template from the templates directory. Names are relative
// to that directory; ".html" is appended when the name has no extension.
func (r *Renderer) lookup(name string) (*template.Template, error) {
	if tmpl, ok := r.custom.Get(name); ok {
		return tmpl, nil
	}

	if r.dir == "" || !filepath.IsLocal(name) {
		return nil, fmt.Errorf("%w: %s", errUnknownTemplate, name)
	}
	file := name
	if filepath.Ext(file) == "" {
		file += ".html"
	}

	root, err := os.OpenRoot(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open templates directory: %w", err)
	}
	defer root.Close()

	data, err := fs.ReadFile(root.FS(), filepath.ToSlash(file))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, fmt.Errorf("%w: %s", errUnknownTemplate, name)
		}
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	tmpl, err := template.New(filepath.Base(file)).Funcs(templateFuncs).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	r.custom.Add(name, tmpl)
	r.logger.Debug("Loaded template", zap.String("name", name))
	return tmpl, nil
}

// NewResultsPage builds the HTML context for an endpoint run.
func NewResultsPage(endpoint *models.Endpoint, result *services.EndpointResult) *PageData {
	page := &PageData{
		Title:       pageTitle(endpoint),
		URL:         endpoint.URL,
		Description: endpoint.Description,
		Result:      result,
	}

	for pair := result.Queries.Oldest(); pair != nil; pair = pair.Next() {
		section := ResultSection{Key: pair.Key, SQL: pair.Value}
		payload, _ := result.Results.Get(pair.Key)
		switch v := payload.(type) {
		case []models.Row:
			section.Columns, section.Rows = tabulate(v)
		case models.Row:
			section.One = true
			if v != nil {
				section.Columns, section.Rows = tabulate([]models.Row{v})
			}
		case nil:
			section.One = true
		}
		page.Sections = append(page.Sections, section)
	}
	return page
}

// NewFormPage builds the HTML context for an endpoint's parameter form.
func NewFormPage(endpoint *models.Endpoint, variables []string) *PageData {
	return &PageData{
		Title:       pageTitle(endpoint),
		URL:         endpoint.URL,
		Description: endpoint.Description,
		Variables:   variables,
	}
}

func pageTitle(endpoint *models.Endpoint) string {
	if endpoint.Name != "" {
		return endpoint.Name
	}
	return endpoint.URL
}

// tabulate flattens rows using the first row's column order.
func tabulate(rows []models.Row) ([]string, [][]any) {
	if len(rows) == 0 {
		return nil, nil
	}
	columns := models.RowColumns(rows[0])
	table := make([][]any, 0, len(rows))
	for _, row := range rows {
		values := make([]any, len(columns))
		for i, col := range columns {
			values[i], _ = row.Get(col)
		}
		table = append(table, values)
	}
	return columns, table
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
