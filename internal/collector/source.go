package collector

import (
	"database/sql"
	"fmt"
	"io"

	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"
)

// Source selects where row queries run.
type Source struct {
	Driver           string // sqlite, postgres, snowflake, http or mock
	DSN              string
	SnowflakeProfile string
	APIKey           string
	Proxy            string
}

// Open connects to the source. The closer releases the connection pool.
func Open(src Source) (Querier, io.Closer, error) {
	switch src.Driver {
	case "sqlite", "postgres":
		db, err := sql.Open(src.Driver, src.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", src.Driver, err)
		}
		return NewSQLQuerier(db), db, nil
	case "snowflake":
		dsn, err := snowflakeDSN(src)
		if err != nil {
			return nil, nil, err
		}
		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open snowflake: %w", err)
		}
		return NewSQLQuerier(db), db, nil
	case "http":
		return NewHTTPQuerier(src.DSN, src.APIKey, src.Proxy), nopCloser{}, nil
	case "mock":
		return &MockQuerier{}, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", src.Driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
