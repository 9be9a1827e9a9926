package model

import (
	"fmt"
	"sort"
)

// Measurement is one raw value produced by a row query. When Over is set the
// measurement represents the fraction Total/Over.
type Measurement struct {
	Total float64
	Over  *float64
}

// Fraction returns a measurement with a denominator.
func Fraction(total, over float64) Measurement {
	return Measurement{Total: total, Over: &over}
}

// Value returns the scalar the measurement stands for. A zero denominator
// yields no data.
func (m Measurement) Value() Scalar {
	if m.Over == nil {
		return Some(m.Total)
	}
	if *m.Over == 0 {
		return None()
	}
	return Some(m.Total / *m.Over)
}

// Observation is a dated measurement as returned by a query.
type Observation struct {
	Date Date
	Measurement
}

// DailySeries is the immutable per-row mapping from date to measurement.
type DailySeries struct {
	points map[Date]Measurement
	dates  []Date
}

// NewDailySeries builds a series and rejects duplicate dates.
func NewDailySeries(obs []Observation) (DailySeries, error) {
	s := DailySeries{
		points: make(map[Date]Measurement, len(obs)),
		dates:  make([]Date, 0, len(obs)),
	}
	for _, o := range obs {
		if _, dup := s.points[o.Date]; dup {
			return DailySeries{}, fmt.Errorf("duplicate measurement for %s", o.Date)
		}
		s.points[o.Date] = o.Measurement
		s.dates = append(s.dates, o.Date)
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
	return s, nil
}

// Get looks up the measurement recorded for d.
func (s DailySeries) Get(d Date) (Measurement, bool) {
	m, ok := s.points[d]
	return m, ok
}

func (s DailySeries) Len() int { return len(s.dates) }

// Dates returns the recorded dates in chronological order.
func (s DailySeries) Dates() []Date {
	out := make([]Date, len(s.dates))
	copy(out, s.dates)
	return out
}

// Between returns the observations with start <= date <= end, oldest first.
func (s DailySeries) Between(start, end Date) []Observation {
	lo := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(start) })
	var out []Observation
	for i := lo; i < len(s.dates) && !s.dates[i].After(end); i++ {
		d := s.dates[i]
		out = append(out, Observation{Date: d, Measurement: s.points[d]})
	}
	return out
}
