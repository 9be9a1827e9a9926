package calculator

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"compgrid/internal/model"
)

// Aggregate reduces the part of series covered by ref to a single scalar.
//
// A point with no measurement is no data, as is a range with no contributing
// date. Dates missing from a range are skipped rather than counted as zero, and
// so are dates whose denominator is zero.
func Aggregate(series model.DailySeries, ref model.TimeReference) model.Scalar {
	if ref.Kind == model.RefPoint {
		m, ok := series.Get(ref.Start)
		if !ok {
			return model.None()
		}
		return m.Value()
	}

	values := RangeValues(series, ref.Start, ref.End)
	if len(values) == 0 {
		return model.None()
	}
	switch ref.Agg {
	case model.AggAvg:
		return model.Some(stat.Mean(values, nil))
	default:
		return model.Some(floats.Sum(values))
	}
}

// RangeValues returns the per-date values in [start, end], oldest first.
func RangeValues(series model.DailySeries, start, end model.Date) []float64 {
	obs := series.Between(start, end)
	values := make([]float64, 0, len(obs))
	for _, o := range obs {
		if v, ok := o.Value().Get(); ok {
			values = append(values, v)
		}
	}
	return values
}

// Window returns one point per calendar day of [start, end], keeping gaps as
// no data so positions line up with dates.
func Window(series model.DailySeries, start, end model.Date) []model.SparkPoint {
	n := start.DaysUntil(end) + 1
	if n <= 0 {
		return nil
	}
	points := make([]model.SparkPoint, n)
	for i := range points {
		day := start.AddDays(i)
		points[i] = model.SparkPoint{Date: day, Value: Aggregate(series, model.Point(day))}
	}
	return points
}
