// Package definition loads grid definitions: a YAML file naming the grid, its
// columns and its rows, plus free-form fields used by the templates.
package definition

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"compgrid/internal/model"
	"compgrid/internal/timeref"
)

// AnchorPlaceholder in a top-level field is replaced by the anchor date.
const AnchorPlaceholder = "{yesterday_date}"

// Error is a definition problem at a given line.
type Error struct {
	File    string
	Line    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Definition is a parsed grid definition.
type Definition struct {
	Name    string
	Path    string
	Columns []model.ColumnSpec
	Rows    []model.RowSpec
	// Fields holds the remaining top-level scalar attributes (title, header,
	// footer, currency_symbol, telegram, slack, ...).
	Fields map[string]string
}

// Dir is the directory holding the definition file.
func (d *Definition) Dir() string {
	if d.Path == "" {
		return "."
	}
	return filepath.Dir(d.Path)
}

// Field returns a top-level field or "".
func (d *Definition) Field(key string) string { return d.Fields[key] }

// Title is the title field for anchor, falling back to the grid name.
func (d *Definition) Title(anchor model.Date) string {
	if t := d.Fields["title"]; t != "" {
		return strings.ReplaceAll(t, AnchorPlaceholder, anchor.String())
	}
	return d.Name
}

// Expand returns the top-level fields with the anchor placeholder substituted.
func (d *Definition) Expand(anchor model.Date) map[string]string {
	out := make(map[string]string, len(d.Fields)+1)
	for k, v := range d.Fields {
		out[k] = strings.ReplaceAll(v, AnchorPlaceholder, anchor.String())
	}
	out["name"] = d.Name
	return out
}

// Load parses the definition at path and reads every row query, resolving
// relative query paths against the definition directory.
func Load(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open definition: %w", err)
	}
	defer f.Close()

	def, err := Parse(f, path)
	if err != nil {
		return nil, err
	}
	def.Path = path

	for i := range def.Rows {
		row := &def.Rows[i]
		queryPath := row.Query
		if !filepath.IsAbs(queryPath) {
			queryPath = filepath.Join(def.Dir(), queryPath)
		}
		data, err := os.ReadFile(queryPath)
		if err != nil {
			return nil, fmt.Errorf("row %q: read query: %w", row.Name, err)
		}
		row.Query = string(data)
	}
	return def, nil
}

// Parse reads a definition from r. Row queries are left as paths.
func Parse(r io.Reader, filename string) (*Definition, error) {
	p := parser{file: filename}

	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{File: filename, Message: "invalid yaml: " + err.Error(), Err: err}
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, p.errorf(1, "missing toplevel name attribute")
	}

	top := mapping(root)
	name, ok := top["name"]
	if !ok || name.Kind != yaml.ScalarNode || name.Value == "" {
		return nil, p.errorf(1, "missing toplevel name attribute")
	}
	columns, ok := top["columns"]
	if !ok {
		return nil, p.errorf(1, "missing toplevel columns attribute")
	}
	if columns.Kind != yaml.SequenceNode {
		return nil, p.errorf(1, "columns must be a list")
	}

	def := &Definition{Name: name.Value, Fields: make(map[string]string)}
	for _, item := range columns.Content {
		col, err := p.column(item)
		if err != nil {
			return nil, err
		}
		def.Columns = append(def.Columns, col)
	}

	if rows, ok := top["rows"]; ok {
		if rows.Kind != yaml.SequenceNode {
			return nil, p.errorf(1, "rows must be a list")
		}
		seen := make(map[string]bool)
		for _, item := range rows.Content {
			row, err := p.row(item)
			if err != nil {
				return nil, err
			}
			if seen[row.Name] {
				return nil, p.errorf(item.Line, "duplicate row name '%s'", row.Name)
			}
			seen[row.Name] = true
			def.Rows = append(def.Rows, row)
		}
	}

	for key, node := range top {
		switch key {
		case "name", "columns", "rows":
			continue
		}
		if node.Kind == yaml.ScalarNode {
			def.Fields[key] = node.Value
		}
	}
	return def, nil
}

type parser struct {
	file string
}

func (p parser) errorf(line int, format string, args ...any) *Error {
	return &Error{File: p.file, Line: line, Message: fmt.Sprintf(format, args...)}
}

func (p parser) column(node *yaml.Node) (model.ColumnSpec, error) {
	if node.Kind != yaml.MappingNode {
		return model.ColumnSpec{}, p.errorf(node.Line, "column must be a mapping")
	}
	attrs := mapping(node)

	typ, ok := attrs["type"]
	if !ok {
		return model.ColumnSpec{}, p.errorf(node.Line, "missing type attribute for column")
	}
	name, ok := attrs["name"]
	if !ok {
		return model.ColumnSpec{}, p.errorf(node.Line, "missing name attribute for column")
	}
	col := model.ColumnSpec{Name: name.Value, Kind: model.ColumnKind(typ.Value)}

	switch col.Kind {
	case model.ColumnNumber, model.ColumnPctChange:
		value, ok := attrs["value"]
		if !ok {
			return col, p.errorf(node.Line, "missing value attribute for column")
		}
		if err := p.expr(node.Line, value.Value); err != nil {
			return col, err
		}
		col.Value = value.Value
		if col.Kind == model.ColumnPctChange {
			base, ok := attrs["base"]
			if !ok {
				return col, p.errorf(node.Line, "missing base attribute for column")
			}
			if err := p.expr(node.Line, base.Value); err != nil {
				return col, err
			}
			col.Base = base.Value
		}
	case model.ColumnSparkline:
		col.Days = model.DefaultSparklineDays
		if days, ok := attrs["days"]; ok {
			n, err := strconv.Atoi(days.Value)
			if err != nil || n < 1 {
				return col, p.errorf(node.Line, "days must be a positive integer, got '%s'", days.Value)
			}
			if n > model.MaxSparklineDays {
				return col, p.errorf(node.Line, "days must be at most %d, got '%s'", model.MaxSparklineDays, days.Value)
			}
			col.Days = n
		}
	default:
		return col, p.errorf(node.Line, "unknown column type '%s'", typ.Value)
	}
	return col, nil
}

func (p parser) expr(line int, text string) error {
	if _, err := timeref.Parse(text); err != nil {
		e := p.errorf(line, "unknown column value '%s'", text)
		e.Err = err
		return e
	}
	return nil
}

func (p parser) row(node *yaml.Node) (model.RowSpec, error) {
	if node.Kind != yaml.MappingNode {
		return model.RowSpec{}, p.errorf(node.Line, "row must be a mapping")
	}
	attrs := mapping(node)

	name, ok := attrs["name"]
	if !ok {
		return model.RowSpec{}, p.errorf(node.Line, "missing name attribute for row")
	}
	query, ok := attrs["query"]
	if !ok {
		return model.RowSpec{}, p.errorf(node.Line, "missing query attribute for row")
	}
	row := model.RowSpec{
		Name:  name.Value,
		Query: query.Value,
		Type:  model.DisplayFloat,
		Style: model.StylePositiveGreen,
	}

	if typ, ok := attrs["type"]; ok {
		switch t := model.DisplayType(typ.Value); t {
		case model.DisplayNumber, model.DisplayFloat, model.DisplayPercent, model.DisplayCurrency:
			row.Type = t
		default:
			return row, p.errorf(node.Line, "unknown row type '%s'", typ.Value)
		}
	}
	if style, ok := attrs["style"]; ok {
		switch s := model.Style(style.Value); s {
		case model.StylePositiveGreen, model.StyleNegativeGreen, model.StyleNeutral:
			row.Style = s
		default:
			return row, p.errorf(node.Line, "unknown row style '%s'", style.Value)
		}
	}
	if goal, ok := attrs["goal"]; ok {
		v, err := strconv.ParseFloat(goal.Value, 64)
		if err != nil || goal.Kind != yaml.ScalarNode {
			return row, p.errorf(node.Line, "goal must be a number, got '%s'", goal.Value)
		}
		row.Goal = &v
	}

	for key, n := range attrs {
		switch key {
		case "name", "query", "type", "style", "goal":
			continue
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return row, p.errorf(n.Line, "invalid value for row attribute %s", key)
		}
		if row.Fields == nil {
			row.Fields = make(map[string]any)
		}
		row.Fields[key] = v
	}
	return row, nil
}

// mapping indexes the key/value pairs of a mapping node.
func mapping(node *yaml.Node) map[string]*yaml.Node {
	out := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out[node.Content[i].Value] = node.Content[i+1]
	}
	return out
}

// Names lists the row names in declared order.
func (d *Definition) Names() []string {
	names := make([]string, len(d.Rows))
	for i, r := range d.Rows {
		names[i] = r.Name
	}
	return names
}

// FieldKeys lists the top-level field names, sorted.
func (d *Definition) FieldKeys() []string {
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
