package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"compgrid/internal/model"
)

// Querier runs one row query and returns its daily series.
type Querier interface {
	QuerySeries(ctx context.Context, query string) (model.DailySeries, error)
}

// Collector runs every row query of a grid concurrently.
type Collector struct {
	Querier        Querier
	MaxConcurrency int
	Timeout        time.Duration
	Logger         zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(q Querier, maxConcurrency int, timeout time.Duration, logger zerolog.Logger) *Collector {
	return &Collector{
		Querier:        q,
		MaxConcurrency: maxConcurrency,
		Timeout:        timeout,
		Logger:         logger.With().Str("component", "collector").Logger(),
	}
}

// Collect returns the series of every row keyed by row name. The first failing
// query cancels the rest.
func (c *Collector) Collect(ctx context.Context, rows []model.RowSpec) (map[string]model.DailySeries, error) {
	g, ctx := errgroup.WithContext(ctx)
	if c.MaxConcurrency > 0 {
		g.SetLimit(c.MaxConcurrency)
	}

	var mu sync.Mutex
	out := make(map[string]model.DailySeries, len(rows))

	for _, row := range rows {
		row := row
		g.Go(func() error {
			qctx := ctx
			if c.Timeout > 0 {
				var cancel context.CancelFunc
				qctx, cancel = context.WithTimeout(ctx, c.Timeout)
				defer cancel()
			}

			start := time.Now()
			s, err := c.Querier.QuerySeries(qctx, row.Query)
			if err != nil {
				return fmt.Errorf("row %q: %w", row.Name, err)
			}
			c.Logger.Debug().
				Str("row", row.Name).
				Int("days", s.Len()).
				Dur("elapsed", time.Since(start)).
				Msg("row collected")

			mu.Lock()
			out[row.Name] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MockQuerier returns fixed series for development and testing. Queries
// without an entry get a generated series ending at End.
type MockQuerier struct {
	Series map[string]model.DailySeries
	Err    error
	Base   float64
	Days   int
	End    model.Date
}

func (m *MockQuerier) QuerySeries(ctx context.Context, query string) (model.DailySeries, error) {
	if err := ctx.Err(); err != nil {
		return model.DailySeries{}, err
	}
	if m.Err != nil {
		return model.DailySeries{}, m.Err
	}
	if s, ok := m.Series[query]; ok {
		return s, nil
	}
	return generateMockSeries(m.base(), m.days(), m.end()), nil
}

func (m *MockQuerier) base() float64 {
	if m.Base == 0 {
		return 1000
	}
	return m.Base
}

func (m *MockQuerier) days() int {
	if m.Days == 0 {
		return 90
	}
	return m.Days
}

func (m *MockQuerier) end() model.Date {
	if m.End.IsZero() {
		return model.Yesterday(time.Now(), time.UTC)
	}
	return m.End
}

func generateMockSeries(base float64, count int, end model.Date) model.DailySeries {
	obs := make([]model.Observation, count)
	for i := 0; i < count; i++ {
		obs[i] = model.Observation{
			Date:        end.AddDays(i - count + 1),
			Measurement: model.Measurement{Total: base * (1 + float64(i-count/2)*0.001)},
		}
	}
	s, _ := model.NewDailySeries(obs)
	return s
}
