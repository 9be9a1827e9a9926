package grid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"compgrid/internal/model"
)

var anchor = model.NewDate(2024, 3, 14)

func mustSeries(t *testing.T, obs ...model.Observation) model.DailySeries {
	t.Helper()
	s, err := model.NewDailySeries(obs)
	require.NoError(t, err)
	return s
}

func daysAgo(n int, m model.Measurement) model.Observation {
	return model.Observation{Date: anchor.AddDays(-n), Measurement: m}
}

func total(v float64) model.Measurement { return model.Measurement{Total: v} }

func ptr(v float64) *float64 { return &v }
