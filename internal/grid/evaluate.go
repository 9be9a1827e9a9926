// Package grid evaluates grid columns against per-row daily series, formats
// the resulting values for each row type and assembles the grid.
package grid

import (
	"fmt"

	"compgrid/internal/calculator"
	"compgrid/internal/model"
	"compgrid/internal/timeref"
)

// Column is a column spec whose expressions have been parsed.
type Column struct {
	Spec  model.ColumnSpec
	value timeref.Expr
	base  timeref.Expr
}

// CompileColumn parses the expressions a column needs for its kind.
func CompileColumn(spec model.ColumnSpec) (Column, error) {
	c := Column{Spec: spec}
	switch spec.Kind {
	case model.ColumnSparkline:
		if c.Spec.Days <= 0 {
			c.Spec.Days = model.DefaultSparklineDays
		}
		if c.Spec.Days > model.MaxSparklineDays {
			return Column{}, fmt.Errorf("column %q: sparkline days %d exceeds %d", spec.Name, spec.Days, model.MaxSparklineDays)
		}
		return c, nil
	case model.ColumnNumber, model.ColumnPctChange:
	default:
		return Column{}, fmt.Errorf("column %q: unknown column type %q", spec.Name, spec.Kind)
	}

	var err error
	if c.value, err = timeref.Parse(spec.Value); err != nil {
		return Column{}, fmt.Errorf("column %q value: %w", spec.Name, err)
	}
	if spec.Kind == model.ColumnPctChange {
		if c.base, err = timeref.Parse(spec.Base); err != nil {
			return Column{}, fmt.Errorf("column %q base: %w", spec.Name, err)
		}
	}
	return c, nil
}

// CompileColumns compiles specs in order and stops at the first error.
func CompileColumns(specs []model.ColumnSpec) ([]Column, error) {
	cols := make([]Column, 0, len(specs))
	for _, spec := range specs {
		c, err := CompileColumn(spec)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// Evaluate computes the raw cell of the column for one row. The returned cell
// has no display value yet.
func (c Column) Evaluate(series model.DailySeries, anchor model.Date) (model.Cell, error) {
	cell := model.Cell{Kind: c.Spec.Kind}

	switch c.Spec.Kind {
	case model.ColumnSparkline:
		cell.Points = calculator.Window(series, anchor.AddDays(1-c.Spec.Days), anchor)
		return cell, nil

	case model.ColumnNumber:
		v, err := c.aggregate(c.value, series, anchor)
		if err != nil {
			return model.Cell{}, err
		}
		cell.Raw = v
		return cell, nil

	default:
		v, err := c.aggregate(c.value, series, anchor)
		if err != nil {
			return model.Cell{}, err
		}
		b, err := c.aggregate(c.base, series, anchor)
		if err != nil {
			return model.Cell{}, err
		}
		cell.Raw = PctChange(v, b)
		return cell, nil
	}
}

func (c Column) aggregate(e timeref.Expr, series model.DailySeries, anchor model.Date) (model.Scalar, error) {
	ref, err := e.Resolve(anchor)
	if err != nil {
		return model.None(), fmt.Errorf("column %q: %w", c.Spec.Name, err)
	}
	return calculator.Aggregate(series, ref), nil
}

// PctChange returns (value - base) / base as a fraction. It is no data when
// either side is missing or the base is zero.
func PctChange(value, base model.Scalar) model.Scalar {
	v, okV := value.Get()
	b, okB := base.Get()
	if !okV || !okB || b == 0 {
		return model.None()
	}
	return model.Some((v - b) / b)
}

// Evaluate compiles spec and evaluates it for one row.
func Evaluate(spec model.ColumnSpec, series model.DailySeries, anchor model.Date) (model.Cell, error) {
	c, err := CompileColumn(spec)
	if err != nil {
		return model.Cell{}, err
	}
	return c.Evaluate(series, anchor)
}
