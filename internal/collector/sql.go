package collector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"compgrid/internal/model"
)

// SQLQuerier runs row queries against a database/sql connection. A query
// returns one row per day with columns date, total and, for fractions, over.
type SQLQuerier struct {
	DB *sql.DB
}

func NewSQLQuerier(db *sql.DB) *SQLQuerier { return &SQLQuerier{DB: db} }

func (q *SQLQuerier) QuerySeries(ctx context.Context, query string) (model.DailySeries, error) {
	rows, err := q.DB.QueryContext(ctx, query)
	if err != nil {
		return model.DailySeries{}, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return model.DailySeries{}, fmt.Errorf("read columns: %w", err)
	}
	dateIdx, totalIdx, overIdx := -1, -1, -1
	for i, c := range cols {
		switch strings.ToLower(c) {
		case "date":
			dateIdx = i
		case "total":
			totalIdx = i
		case "over":
			overIdx = i
		}
	}
	if dateIdx < 0 {
		return model.DailySeries{}, fmt.Errorf("query result has no date column")
	}
	if totalIdx < 0 {
		return model.DailySeries{}, fmt.Errorf("query result has no total column")
	}

	var obs []model.Observation
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return model.DailySeries{}, fmt.Errorf("scan row: %w", err)
		}

		date, err := toDate(values[dateIdx])
		if err != nil {
			return model.DailySeries{}, err
		}
		total, ok, err := toFloat(values[totalIdx])
		if err != nil {
			return model.DailySeries{}, fmt.Errorf("total on %s: %w", date, err)
		}
		if !ok {
			continue
		}
		m := model.Measurement{Total: total}
		if overIdx >= 0 {
			over, ok, err := toFloat(values[overIdx])
			if err != nil {
				return model.DailySeries{}, fmt.Errorf("over on %s: %w", date, err)
			}
			if ok {
				m = model.Fraction(total, over)
			}
		}
		obs = append(obs, model.Observation{Date: date, Measurement: m})
	}
	if err := rows.Err(); err != nil {
		return model.DailySeries{}, fmt.Errorf("iterate rows: %w", err)
	}
	return model.NewDailySeries(obs)
}

func toDate(v any) (model.Date, error) {
	switch x := v.(type) {
	case time.Time:
		return model.DateOf(x), nil
	case string:
		return parseDateText(x)
	case []byte:
		return parseDateText(string(x))
	case nil:
		return model.Date{}, fmt.Errorf("null date in query result")
	default:
		return model.Date{}, fmt.Errorf("unsupported date value %v (%T)", v, v)
	}
}

// parseDateText accepts YYYY-MM-DD optionally followed by a time part.
func parseDateText(s string) (model.Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(model.DateLayout) {
		s = s[:len(model.DateLayout)]
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return model.Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// toFloat reports ok=false for NULL.
func toFloat(v any) (float64, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return x, true, nil
	case float32:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case int32:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil, err
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil, err
	default:
		return 0, false, fmt.Errorf("unsupported numeric value %v (%T)", v, v)
	}
}
