package model

import "fmt"

// RefKind tags a TimeReference.
type RefKind int

const (
	RefPoint RefKind = iota
	RefRange
)

// AggregationKind says how a Range combines its measurements.
type AggregationKind string

const (
	AggSum AggregationKind = "sum"
	AggAvg AggregationKind = "avg"
)

// TimeReference is a resolved time expression: a single date, or an inclusive
// date range with an aggregation kind.
type TimeReference struct {
	Kind  RefKind
	Start Date
	End   Date
	Agg   AggregationKind
}

// Point references a single date.
func Point(d Date) TimeReference {
	return TimeReference{Kind: RefPoint, Start: d, End: d}
}

// Range references the inclusive window [start, end].
func Range(start, end Date, agg AggregationKind) TimeReference {
	return TimeReference{Kind: RefRange, Start: start, End: end, Agg: agg}
}

// Days returns the number of calendar days the reference covers.
func (r TimeReference) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

func (r TimeReference) String() string {
	if r.Kind == RefPoint {
		return fmt.Sprintf("Point(%s)", r.Start)
	}
	return fmt.Sprintf("Range(%s, %s, %s)", r.Start, r.End, r.Agg)
}
