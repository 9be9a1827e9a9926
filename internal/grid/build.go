package grid

import (
	"fmt"

	"compgrid/internal/model"
)

// MissingSeriesError reports a declared row without a daily series.
type MissingSeriesError struct {
	Row string
}

func (e *MissingSeriesError) Error() string {
	return fmt.Sprintf("no daily series for row %q", e.Row)
}

// Builder assembles grids. The zero value builds unnamed grids with the
// default currency symbol.
type Builder struct {
	Name      string
	Formatter Formatter
}

// Build evaluates every row against every column in declared order. Expression
// errors and missing series abort the build; cells without data do not.
func (b Builder) Build(rows []model.RowSpec, series map[string]model.DailySeries, columns []model.ColumnSpec, anchor model.Date) (*model.Grid, error) {
	cols, err := CompileColumns(columns)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, ok := series[row.Name]; !ok {
			return nil, &MissingSeriesError{Row: row.Name}
		}
	}

	g := &model.Grid{
		Name:    b.Name,
		Anchor:  anchor,
		Columns: make([]model.ColumnSpec, len(cols)),
		Rows:    make([]model.GridRow, 0, len(rows)),
	}
	for j, c := range cols {
		g.Columns[j] = c.Spec
	}

	for _, row := range rows {
		s := series[row.Name]
		cells := make([]model.Cell, 0, len(cols))
		for _, c := range cols {
			cell, err := c.Evaluate(s, anchor)
			if err != nil {
				return nil, fmt.Errorf("row %q: %w", row.Name, err)
			}
			cells = append(cells, b.Formatter.Format(cell, row))
		}
		g.Rows = append(g.Rows, model.GridRow{Spec: row, Cells: cells})
	}
	return g, nil
}

// Build assembles an unnamed grid with the default formatter.
func Build(rows []model.RowSpec, series map[string]model.DailySeries, columns []model.ColumnSpec, anchor model.Date) (*model.Grid, error) {
	return Builder{}.Build(rows, series, columns, anchor)
}
