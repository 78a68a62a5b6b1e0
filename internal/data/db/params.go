package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver names a supported backend.
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Drivers lists every supported driver name.
var Drivers = []Driver{DriverMySQL, DriverPostgres, DriverSQLite}

const (
	defaultRetries = 5
	initialWait    = 100 * time.Millisecond
	busyTimeout    = 5000 // milliseconds
)

// Params holds everything needed to open a handle. For sqlite, Database is
// the path of the database file and Host, User and Password are ignored.
type Params struct {
	Driver   Driver
	Host     string
	User     string
	Password string
	Database string // empty selects no default database

	// Retries is the number of ping attempts before giving up. Zero uses
	// the default of 5.
	Retries int
}

func (p Params) retries() int {
	if p.Retries <= 0 {
		return defaultRetries
	}
	return p.Retries
}

// openPool builds the driver-level *sql.DB. No connection is established
// until the first ping.
func (p Params) openPool() (*sql.DB, error) {
	switch p.Driver {
	case DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = p.User
		cfg.Passwd = p.Password
		cfg.Net = "tcp"
		cfg.Addr = p.Host
		cfg.DBName = p.Database

		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("mysql config: %w", err)
		}
		return sql.OpenDB(connector), nil

	case DriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(p.User, p.Password),
			Host:   p.Host,
		}
		if p.Database != "" {
			u.Path = "/" + p.Database
		}

		cfg, err := pgx.ParseConfig(u.String())
		if err != nil {
			return nil, fmt.Errorf("postgres config: %w", err)
		}
		return stdlib.OpenDB(*cfg), nil

	case DriverSQLite:
		if p.Database == "" {
			return nil, fmt.Errorf("sqlite requires a database file path")
		}
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", p.Database, busyTimeout)
		return sql.Open("sqlite", dsn)

	default:
		return nil, fmt.Errorf("unsupported driver %q", p.Driver)
	}
}
