package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// DB wraps sql.DB with additional context
type DB struct {
	*sql.DB
	driver string
}

// Config holds connection settings shared by both source databases.
// The two sources live on the same host under the same credentials and
// differ only in database name.
type Config struct {
	Driver       string `toml:"driver"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Username     string `toml:"username"`
	MetersightDB string `toml:"metersight_db"`
	AppOpsDB     string `toml:"app_ops_db"`

	// Password only ever comes from the environment, never from a file.
	Password string `toml:"-"`

	// UTCOffsetHours shifts source timestamps into local time inside the
	// extraction queries (the sources store UTC).
	UTCOffsetHours int `toml:"utc_offset_hours"`

	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `toml:"conn_max_idle_time"`
}

// Standard errors
var (
	// ErrSourceUnavailable marks infrastructure-tier source failures:
	// the run cannot proceed without both sources.
	ErrSourceUnavailable = errors.New("db: source unavailable")
)

// IsSourceUnavailable checks if error is an infrastructure-tier source failure
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// DSN builds the connection string for one of the configured databases.
// sqlite3 treats the database name as a file path, which keeps local
// development and the db tests driver-agnostic.
func (c Config) DSN(database string) string {
	if c.Driver == "sqlite3" {
		return database
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + database,
	}
	return u.String()
}

// Open creates a new database connection
func Open(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{
		DB:     db,
		driver: driver,
	}, nil
}

// OpenWithConfig opens one of the configured databases by name and
// applies the connection pool settings.
func OpenWithConfig(config Config, database string) (*DB, error) {
	db, err := Open(config.Driver, config.DSN(database))
	if err != nil {
		return nil, err
	}

	// Apply connection pool settings
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	return db, nil
}

// Driver returns the database driver name
func (db *DB) Driver() string {
	return db.driver
}
