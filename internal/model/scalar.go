package model

import (
	"encoding/json"
	"strconv"
)

// Scalar is an optional number. The zero value is no data, which is never the
// same thing as a zero.
type Scalar struct {
	Value float64
	Valid bool
}

func Some(v float64) Scalar { return Scalar{Value: v, Valid: true} }

func None() Scalar { return Scalar{} }

// Get returns the value and whether it is present.
func (s Scalar) Get() (float64, bool) { return s.Value, s.Valid }

func (s Scalar) String() string {
	if !s.Valid {
		return "none"
	}
	return strconv.FormatFloat(s.Value, 'g', -1, 64)
}

// MarshalJSON encodes no data as null.
func (s Scalar) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}
