package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"attendance-backend/internal/platform/config"
)

type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by name
	sqlx.BindDriver(string(SQLite), sqlx.QUESTION)
}

// 接続プール既定値（合算がDBの max_connections を超えないよう配分する）
const (
	defaultMaxOpenConns    = 80
	defaultMaxIdleConns    = 20
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// ParseDialect picks the driver from an explicit name, falling back to the
// shape of the URL. JDBC-style "jdbc:" prefixes are accepted.
func ParseDialect(driver, rawURL string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "":
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}

	u := strings.ToLower(strings.TrimPrefix(rawURL, "jdbc:"))
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return Postgres, nil
	case strings.HasPrefix(u, "file:"), u == ":memory:",
		strings.HasSuffix(u, ".db"), strings.HasSuffix(u, ".sqlite"):
		return SQLite, nil
	default:
		return MySQL, nil
	}
}

// DSN turns DB_URL plus credentials into a driver-specific data source name.
func (d Dialect) DSN(rawURL, user, password string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(rawURL), "jdbc:")
	if raw == "" {
		return "", errors.New("empty database url")
	}

	switch d {
	case Postgres:
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid postgres url: %w", err)
		}
		u.User = url.UserPassword(user, password)
		return u.String(), nil

	case SQLite:
		if strings.Contains(raw, "?") || raw == ":memory:" {
			return raw, nil
		}
		return raw + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil

	case MySQL:
		var c *mysql.Config
		if strings.Contains(raw, "(") {
			parsed, err := mysql.ParseDSN(raw)
			if err != nil {
				return "", fmt.Errorf("invalid mysql dsn: %w", err)
			}
			c = parsed
		} else {
			u, err := url.Parse("mysql://" + strings.TrimPrefix(raw, "mysql://"))
			if err != nil {
				return "", fmt.Errorf("invalid mysql url: %w", err)
			}
			c = mysql.NewConfig()
			c.Net = "tcp"
			c.Addr = u.Host
			c.DBName = strings.TrimPrefix(u.Path, "/")
			for k, v := range u.Query() {
				if c.Params == nil {
					c.Params = map[string]string{}
				}
				c.Params[k] = v[0]
			}
		}
		c.User = user
		c.Passwd = password
		c.ParseTime = true
		c.Loc = time.UTC
		if c.Timeout == 0 {
			c.Timeout = 3 * time.Second
		}
		if c.ReadTimeout == 0 {
			c.ReadTimeout = 5 * time.Second
		}
		if c.WriteTimeout == 0 {
			c.WriteTimeout = 5 * time.Second
		}
		return c.FormatDSN(), nil
	}
	return "", fmt.Errorf("unsupported dialect %q", d)
}

// DB is the persistence gateway's handle: a pool plus the dialect and the
// deadline applied to every operation.
type DB struct {
	x       *sqlx.DB
	dialect Dialect
	timeout time.Duration
}

// New wraps an already opened pool. Tests use it with sqlmock.
func New(x *sqlx.DB, dialect Dialect, timeout time.Duration) *DB {
	if timeout <= 0 {
		timeout = config.DefaultQueryTimeout
	}
	return &DB{x: x, dialect: dialect, timeout: timeout}
}

// Connect opens the pool without touching the network; call Ping to check
// reachability.
func Connect(c config.DatabaseConfig) (*DB, error) {
	dialect, err := ParseDialect(c.Driver, c.URL)
	if err != nil {
		return nil, err
	}
	dsn, err := dialect.DSN(c.URL, c.User, c.Password)
	if err != nil {
		return nil, err
	}

	x, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare connection: %w", err)
	}

	x.SetMaxOpenConns(orDefault(c.MaxOpenConns, defaultMaxOpenConns))
	x.SetMaxIdleConns(orDefault(c.MaxIdleConns, defaultMaxIdleConns))
	x.SetConnMaxLifetime(orDefault(c.ConnMaxLifetime, defaultConnMaxLifetime))
	x.SetConnMaxIdleTime(orDefault(c.ConnMaxIdleTime, defaultConnMaxIdleTime))

	return New(x, dialect, c.QueryTimeout), nil
}

func orDefault[T int | time.Duration](v, d T) T {
	if v <= 0 {
		return d
	}
	return v
}

func (d *DB) Dialect() Dialect { return d.dialect }
func (d *DB) Close() error     { return d.x.Close() }

func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.x.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach database: %w", err)
	}
	return nil
}

// Rebind rewrites '?' placeholders for the current dialect.
func (d *DB) Rebind(q string) string { return d.x.Rebind(q) }
