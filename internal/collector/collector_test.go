package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compgrid/internal/model"
)

var end = model.NewDate(2024, 3, 14)

type slowQuerier struct {
	inFlight, peak atomic.Int32
	delay          time.Duration
}

func (q *slowQuerier) QuerySeries(ctx context.Context, _ string) (model.DailySeries, error) {
	n := q.inFlight.Add(1)
	defer q.inFlight.Add(-1)
	for {
		p := q.peak.Load()
		if n <= p || q.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(q.delay):
		return model.NewDailySeries(nil)
	case <-ctx.Done():
		return model.DailySeries{}, ctx.Err()
	}
}

func rows(names ...string) []model.RowSpec {
	out := make([]model.RowSpec, len(names))
	for i, n := range names {
		out[i] = model.RowSpec{Name: n, Query: "q-" + n}
	}
	return out
}

func TestCollect_KeysByRowName(t *testing.T) {
	fixed, err := model.NewDailySeries([]model.Observation{{Date: end, Measurement: model.Measurement{Total: 3}}})
	require.NoError(t, err)

	q := &MockQuerier{Series: map[string]model.DailySeries{"q-a": fixed}, Days: 10, End: end}
	c := NewCollector(q, 2, time.Second, zerolog.Nop())

	got, err := c.Collect(context.Background(), rows("a", "b"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got["a"].Len())
	assert.Equal(t, 10, got["b"].Len())
	dates := got["b"].Dates()
	assert.Equal(t, end, dates[len(dates)-1])
}

func TestCollect_Error(t *testing.T) {
	c := NewCollector(&MockQuerier{Err: errors.New("boom")}, 2, 0, zerolog.Nop())
	_, err := c.Collect(context.Background(), rows("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `row "a": boom`)
}

func TestCollect_BoundedConcurrency(t *testing.T) {
	q := &slowQuerier{delay: 20 * time.Millisecond}
	c := NewCollector(q, 2, time.Second, zerolog.Nop())

	got, err := c.Collect(context.Background(), rows("a", "b", "c", "d", "e"))
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.LessOrEqual(t, q.peak.Load(), int32(2))
}

func TestCollect_Timeout(t *testing.T) {
	q := &slowQuerier{delay: time.Second}
	c := NewCollector(q, 1, 10*time.Millisecond, zerolog.Nop())

	_, err := c.Collect(context.Background(), rows("a"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
