package collector

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compgrid/internal/model"
)

const sendsQuery = "SELECT date, total, over FROM sends"

func TestSQLQuerier_QuerySeries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"DATE", "Total", "over"}).
		AddRow(time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), 10.0, nil).
		AddRow("2024-03-13", int64(3), 4.0).
		AddRow([]byte("2024-03-14 00:00:00"), []byte("7.5"), 0.0).
		AddRow("2024-03-15", nil, 2.0)
	mock.ExpectQuery(regexp.QuoteMeta(sendsQuery)).WillReturnRows(rows)

	s, err := NewSQLQuerier(db).QuerySeries(context.Background(), sendsQuery)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 3, s.Len())

	m, ok := s.Get(model.NewDate(2024, 3, 12))
	require.True(t, ok)
	assert.Equal(t, model.Some(10), m.Value())

	m, ok = s.Get(model.NewDate(2024, 3, 13))
	require.True(t, ok)
	assert.Equal(t, model.Some(0.75), m.Value())

	m, ok = s.Get(model.NewDate(2024, 3, 14))
	require.True(t, ok)
	assert.False(t, m.Value().Valid, "zero over is undefined")

	_, ok = s.Get(model.NewDate(2024, 3, 15))
	assert.False(t, ok, "null total skips the day")
}

func TestSQLQuerier_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		err     error
		wantErr string
	}{
		{"no date column", sqlmock.NewRows([]string{"day", "total"}).AddRow("2024-01-01", 1.0), nil, "no date column"},
		{"no total column", sqlmock.NewRows([]string{"date", "value"}).AddRow("2024-01-01", 1.0), nil, "no total column"},
		{"bad date", sqlmock.NewRows([]string{"date", "total"}).AddRow("yesterday", 1.0), nil, "invalid date"},
		{"null date", sqlmock.NewRows([]string{"date", "total"}).AddRow(nil, 1.0), nil, "null date"},
		{"bad total", sqlmock.NewRows([]string{"date", "total"}).AddRow("2024-01-01", "many"), nil, "total on 2024-01-01"},
		{"duplicate date", sqlmock.NewRows([]string{"date", "total"}).AddRow("2024-01-01", 1.0).AddRow("2024-01-01", 2.0), nil, "duplicate"},
		{"query fails", nil, errors.New("warehouse suspended"), "warehouse suspended"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			exp := mock.ExpectQuery("SELECT")
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnRows(tt.rows)
			}

			_, err = NewSQLQuerier(db).QuerySeries(context.Background(), "SELECT 1")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOpen_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE signups (day TEXT, n INTEGER, visits INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO signups VALUES ('2024-03-13', 5, 50), ('2024-03-14', 8, 40)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	q, closer, err := Open(Source{Driver: "sqlite", DSN: path})
	require.NoError(t, err)
	defer closer.Close()

	s, err := q.QuerySeries(context.Background(), `SELECT day AS date, n AS total, visits AS over FROM signups`)
	require.NoError(t, err)
	m, ok := s.Get(model.NewDate(2024, 3, 14))
	require.True(t, ok)
	assert.Equal(t, model.Some(0.2), m.Value())
}

func TestOpen_Drivers(t *testing.T) {
	q, closer, err := Open(Source{Driver: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &MockQuerier{}, q)
	assert.NoError(t, closer.Close())

	q, _, err = Open(Source{Driver: "http", DSN: "http://localhost/query", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "k", q.(*HTTPQuerier).APIKey)

	_, _, err = Open(Source{Driver: "oracle"})
	assert.Error(t, err)

	_, _, err = Open(Source{Driver: "snowflake"})
	assert.Error(t, err)
}
