package notifier

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"compgrid/internal/model"
)

//go:embed templates
var defaultTemplates embed.FS

// templateFiles maps a delivery target to its template file name.
var templateFiles = map[string]string{
	"telegram": "telegram.html",
	"slack":    "slack.md",
	"stdout":   "stdout.txt",
	"email":    "email.html",
}

// View is the data a grid template sees.
type View struct {
	Name   string
	Title  string
	Anchor string
	Fields map[string]string
	Grid   *model.Grid
	Table  string
}

// NewView prepares a grid for rendering. fields are the definition's
// top-level fields with the anchor already substituted.
func NewView(g *model.Grid, title string, fields map[string]string) View {
	return View{
		Name:   g.Name,
		Title:  title,
		Anchor: g.Anchor.String(),
		Fields: fields,
		Grid:   g,
		Table:  FormatTable(g),
	}
}

// Renderer renders grid views with templates found next to the definition,
// falling back to built-in ones.
type Renderer struct {
	// Dir is the definition directory. Templates are looked up in
	// Dir/templates/<target>/<grid>, Dir/templates/<target> and Dir/templates.
	Dir string
}

func NewRenderer(dir string) *Renderer { return &Renderer{Dir: dir} }

// Render renders v for target.
func (r *Renderer) Render(target string, v View) (string, error) {
	file, ok := templateFiles[target]
	if !ok {
		return "", fmt.Errorf("no template for target %q", target)
	}
	src, err := r.lookup(target, v.Name, file)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(file).
		Option("missingkey=zero").
		Funcs(template.FuncMap{"esc": html.EscapeString}).
		Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", file, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render template %s: %w", file, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (r *Renderer) lookup(target, grid, file string) ([]byte, error) {
	if r.Dir != "" {
		candidates := []string{
			filepath.Join(r.Dir, "templates", target, grid, file),
			filepath.Join(r.Dir, "templates", target, file),
			filepath.Join(r.Dir, "templates", file),
		}
		for _, path := range candidates {
			data, err := os.ReadFile(path)
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read template: %w", err)
			}
		}
	}
	data, err := defaultTemplates.ReadFile("templates/" + file)
	if err != nil {
		return nil, fmt.Errorf("read built-in template: %w", err)
	}
	return data, nil
}

func escape(s string) string { return html.EscapeString(s) }
