package model

// ColumnKind is the calculation a column performs.
type ColumnKind string

const (
	ColumnNumber    ColumnKind = "number"
	ColumnPctChange ColumnKind = "pctchange"
	ColumnSparkline ColumnKind = "sparkline"
)

// DefaultSparklineDays is the window of a sparkline column without explicit days.
const DefaultSparklineDays = 30

// MaxSparklineDays bounds the window of a sparkline column.
const MaxSparklineDays = 366

// ColumnSpec is one declared column of a grid.
type ColumnSpec struct {
	Name  string     `json:"name"`
	Kind  ColumnKind `json:"type"`
	Value string     `json:"value,omitempty"`
	Base  string     `json:"base,omitempty"`
	Days  int        `json:"days,omitempty"`
}

// DisplayType is how a row's values are shown.
type DisplayType string

const (
	DisplayFloat    DisplayType = "float"
	DisplayNumber   DisplayType = "number"
	DisplayPercent  DisplayType = "percent"
	DisplayCurrency DisplayType = "currency"
)

// Style decides whether a percent change is good news.
type Style string

const (
	StylePositiveGreen Style = "positive-green"
	StyleNegativeGreen Style = "negative-green"
	StyleNeutral       Style = "neutral"
)

// RowSpec is one declared row of a grid.
type RowSpec struct {
	Name   string         `json:"name"`
	Type   DisplayType    `json:"type"`
	Style  Style          `json:"style,omitempty"`
	Goal   *float64       `json:"goal,omitempty"`
	Query  string         `json:"-"`
	Fields map[string]any `json:"-"`
}

// Status tells whether a value meets the row goal.
type Status string

const (
	StatusNone   Status = ""
	StatusMet    Status = "met"
	StatusMissed Status = "missed"
)

// Tone classifies a percent change for display.
type Tone string

const (
	ToneNone    Tone = ""
	ToneGood    Tone = "good"
	ToneBad     Tone = "bad"
	ToneNeutral Tone = "neutral"
)

// SparkPoint is one position of a sparkline.
type SparkPoint struct {
	Date  Date   `json:"date"`
	Value Scalar `json:"value"`
}

// Cell is the computed value at one (row, column) of a grid.
type Cell struct {
	Kind    ColumnKind   `json:"kind"`
	Raw     Scalar       `json:"raw"`
	Display string       `json:"display"`
	Status  Status       `json:"status,omitempty"`
	Tone    Tone         `json:"tone,omitempty"`
	Points  []SparkPoint `json:"points,omitempty"`
}

// NoData reports whether the cell carries no value.
func (c Cell) NoData() bool {
	if c.Kind == ColumnSparkline {
		for _, p := range c.Points {
			if p.Value.Valid {
				return false
			}
		}
		return true
	}
	return !c.Raw.Valid
}

// GridRow is a row spec with its cells in column order.
type GridRow struct {
	Spec  RowSpec `json:"row"`
	Cells []Cell  `json:"cells"`
}

// Grid is the output of one build: ordered rows by ordered columns.
type Grid struct {
	Name    string       `json:"name"`
	Anchor  Date         `json:"anchor"`
	Columns []ColumnSpec `json:"columns"`
	Rows    []GridRow    `json:"rows"`
}

// Cell returns the cell at row i, column j.
func (g *Grid) Cell(i, j int) Cell {
	return g.Rows[i].Cells[j]
}
