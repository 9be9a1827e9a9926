package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compgrid/internal/model"
	"compgrid/internal/timeref"
)

func TestBuild_OrderAndShape(t *testing.T) {
	rows := []model.RowSpec{
		{Name: "A", Type: model.DisplayNumber},
		{Name: "B", Type: model.DisplayCurrency},
	}
	columns := []model.ColumnSpec{
		{Name: "Yesterday", Kind: model.ColumnNumber, Value: "yesterday"},
		{Name: "WoW", Kind: model.ColumnPctChange, Value: "yesterday", Base: "daysago(7)"},
	}
	series := map[string]model.DailySeries{
		"A": mustSeries(t, daysAgo(0, total(110)), daysAgo(7, total(100))),
		"B": mustSeries(t, daysAgo(0, total(49.5))),
	}

	g, err := Builder{Name: "daily"}.Build(rows, series, columns, anchor)
	require.NoError(t, err)

	assert.Equal(t, "daily", g.Name)
	assert.Equal(t, anchor, g.Anchor)
	assert.Equal(t, columns, g.Columns)
	require.Len(t, g.Rows, 2)
	assert.Equal(t, "A", g.Rows[0].Spec.Name)
	assert.Equal(t, "B", g.Rows[1].Spec.Name)
	for _, r := range g.Rows {
		assert.Len(t, r.Cells, 2)
	}

	assert.Equal(t, "110", g.Cell(0, 0).Display)
	assert.Equal(t, "+10.0%", g.Cell(0, 1).Display)
	assert.Equal(t, model.ToneGood, g.Cell(0, 1).Tone)
	assert.Equal(t, "$49.50", g.Cell(1, 0).Display)
	assert.Equal(t, NoDataToken, g.Cell(1, 1).Display)
	assert.True(t, g.Cell(1, 1).NoData())
}

func TestBuild_TrailingAvgPercentRow(t *testing.T) {
	obs := make([]model.Observation, 7)
	for i := range obs {
		obs[i] = daysAgo(i, model.Fraction(100, 200))
	}
	rows := []model.RowSpec{{Name: "conversion", Type: model.DisplayPercent}}
	columns := []model.ColumnSpec{{Name: "7d", Kind: model.ColumnNumber, Value: "trailingavg(7)"}}

	g, err := Build(rows, map[string]model.DailySeries{"conversion": mustSeries(t, obs...)}, columns, anchor)
	require.NoError(t, err)

	cell := g.Cell(0, 0)
	require.True(t, cell.Raw.Valid)
	assert.InDelta(t, 0.5, cell.Raw.Value, 1e-12)
	assert.Equal(t, "50.0%", cell.Display)
}

func TestBuild_MissingSeries(t *testing.T) {
	rows := []model.RowSpec{{Name: "A"}, {Name: "B"}}
	columns := []model.ColumnSpec{{Name: "y", Kind: model.ColumnNumber, Value: "yesterday"}}
	series := map[string]model.DailySeries{"A": mustSeries(t, daysAgo(0, total(1)))}

	g, err := Build(rows, series, columns, anchor)
	assert.Nil(t, g)
	var missing *MissingSeriesError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "B", missing.Row)
}

func TestBuild_ParseErrorAborts(t *testing.T) {
	rows := []model.RowSpec{{Name: "A"}}
	columns := []model.ColumnSpec{
		{Name: "ok", Kind: model.ColumnNumber, Value: "yesterday"},
		{Name: "bad", Kind: model.ColumnNumber, Value: "trailingsum(7,7)"},
	}
	series := map[string]model.DailySeries{"A": mustSeries(t, daysAgo(0, total(1)))}

	g, err := Build(rows, series, columns, anchor)
	assert.Nil(t, g)
	var pe *timeref.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "trailingsum(7,7)", pe.Expr)
}

func TestBuild_GoalStatus(t *testing.T) {
	rows := []model.RowSpec{
		{Name: "hit", Type: model.DisplayNumber, Goal: ptr(10)},
		{Name: "miss", Type: model.DisplayNumber, Goal: ptr(10)},
	}
	columns := []model.ColumnSpec{
		{Name: "y", Kind: model.ColumnNumber, Value: "yesterday"},
		{Name: "trend", Kind: model.ColumnSparkline, Days: 3},
	}
	series := map[string]model.DailySeries{
		"hit":  mustSeries(t, daysAgo(0, total(10)), daysAgo(2, total(4))),
		"miss": mustSeries(t, daysAgo(0, total(9))),
	}

	g, err := Build(rows, series, columns, anchor)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMet, g.Cell(0, 0).Status)
	assert.Equal(t, model.StatusMissed, g.Cell(1, 0).Status)
	assert.Equal(t, model.StatusNone, g.Cell(0, 1).Status)
	assert.Equal(t, "▁ █", g.Cell(0, 1).Display)
	assert.Equal(t, "  ▁", g.Cell(1, 1).Display)
}

func TestBuild_NoRows(t *testing.T) {
	g, err := Build(nil, nil, []model.ColumnSpec{{Name: "y", Kind: model.ColumnNumber, Value: "yesterday"}}, anchor)
	require.NoError(t, err)
	assert.Empty(t, g.Rows)
	assert.Len(t, g.Columns, 1)
}
