package grid

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"

	"compgrid/internal/model"
)

// NoDataToken is shown for a value that could not be computed.
const NoDataToken = "n/a"

// DefaultCurrencySymbol prefixes currency rows unless the definition says otherwise.
const DefaultCurrencySymbol = "$"

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Formatter renders raw cells for display. All rounding is half-to-even.
type Formatter struct {
	CurrencySymbol string
}

// FormatScalar renders raw for a row of type typ and, when goal is set,
// classifies it against the goal.
func (f Formatter) FormatScalar(raw model.Scalar, typ model.DisplayType, goal *float64) (string, model.Status) {
	v, ok := raw.Get()
	if !ok || !finite(v) {
		return NoDataToken, model.StatusNone
	}

	var out string
	switch typ {
	case model.DisplayNumber:
		out = group(round(v, 0), 0)
	case model.DisplayPercent:
		out = group(round(v*100, 1), 1) + "%"
	case model.DisplayCurrency:
		d := round(v, 2)
		out = f.symbol() + group(d.Abs(), 2)
		if d.IsNegative() {
			out = "-" + out
		}
	default:
		out = group(round(v, 2), 2)
	}

	status := model.StatusNone
	if goal != nil {
		status = model.StatusMissed
		if v >= *goal {
			status = model.StatusMet
		}
	}
	return out, status
}

// FormatPctChange renders a change fraction as a signed percent.
func FormatPctChange(raw model.Scalar) string {
	v, ok := raw.Get()
	if !ok || !finite(v) {
		return NoDataToken
	}
	d := round(v*100, 1)
	out := group(d, 1) + "%"
	if d.IsPositive() {
		out = "+" + out
	}
	return out
}

// ToneOf classifies a change fraction under the row style.
func ToneOf(raw model.Scalar, style model.Style) model.Tone {
	v, ok := raw.Get()
	if !ok {
		return model.ToneNone
	}
	switch style {
	case model.StyleNeutral:
		return model.ToneNeutral
	case model.StyleNegativeGreen:
		if v <= 0 {
			return model.ToneGood
		}
		return model.ToneBad
	default:
		if v >= 0 {
			return model.ToneGood
		}
		return model.ToneBad
	}
}

// Sparkline draws points as block characters, leaving a space for each gap.
func Sparkline(points []model.SparkPoint) string {
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Value.Valid && finite(p.Value.Value) {
			values = append(values, p.Value.Value)
		}
	}
	if len(values) == 0 {
		return ""
	}
	lo, hi := floats.Min(values), floats.Max(values)
	top := len(sparkLevels) - 1

	var b strings.Builder
	for _, p := range points {
		if !p.Value.Valid || !finite(p.Value.Value) {
			b.WriteRune(' ')
			continue
		}
		level := 0
		if hi > lo {
			level = int(math.Round((p.Value.Value - lo) / (hi - lo) * float64(top)))
		}
		b.WriteRune(sparkLevels[level])
	}
	return b.String()
}

// Format fills in the display value, status and tone of a raw cell.
func (f Formatter) Format(cell model.Cell, row model.RowSpec) model.Cell {
	switch cell.Kind {
	case model.ColumnPctChange:
		cell.Display = FormatPctChange(cell.Raw)
		cell.Tone = ToneOf(cell.Raw, row.Style)
	case model.ColumnSparkline:
		cell.Display = Sparkline(cell.Points)
		if cell.Display == "" {
			cell.Display = NoDataToken
		}
	default:
		cell.Display, cell.Status = f.FormatScalar(cell.Raw, row.Type, row.Goal)
	}
	return cell
}

func (f Formatter) symbol() string {
	if f.CurrencySymbol == "" {
		return DefaultCurrencySymbol
	}
	return f.CurrencySymbol
}

func round(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).RoundBank(places)
}

// group renders d with thousands separators and exactly places decimals.
func group(d decimal.Decimal, places int32) string {
	neg := d.IsNegative()
	d = d.Abs()
	out := humanize.Comma(d.IntPart())
	if places > 0 {
		fixed := d.StringFixed(places)
		out += fixed[strings.IndexByte(fixed, '.'):]
	}
	if neg {
		out = "-" + out
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
