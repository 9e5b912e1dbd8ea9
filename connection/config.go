// Package connection implements the connection manager: per-name
// connection configuration, lazy *sql.DB creation, the
// transaction/savepoint depth state machine, query logging, and
// reconnection. It implements query.Conn so a query.Builder can run
// directly against a Connection.
package connection

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/syssam/velox"
	"github.com/syssam/velox/dialect"
)

// Config describes one named connection. It is built with functional
// options (Velox's ambient-stack convention; see SPEC_FULL.md) rather than
// a struct literal so that required validation runs in one place
// regardless of which fields the caller sets.
type Config struct {
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Charset  string

	// SearchPath is Postgres-only: one or more schema names consulted in
	// order, mirroring libpq's search_path (grounded on
	// original_source/parsessearchpath.hpp/.cpp).
	SearchPath []string

	// ForeignKeys is SQLite-only: DSN adds the foreign_keys(1) pragma so
	// every connection opened from it enforces foreign keys.
	ForeignKeys bool

	Options map[string]string
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithHost sets the host for a TCP-based driver (mysql/postgres).
func WithHost(host string) Option { return func(c *Config) { c.Host = host } }

// WithPort sets the port for a TCP-based driver.
func WithPort(port int) Option { return func(c *Config) { c.Port = port } }

// WithDatabase sets the database/schema name, or the file path for sqlite.
func WithDatabase(db string) Option { return func(c *Config) { c.Database = db } }

// WithCredentials sets the username/password for a TCP-based driver.
func WithCredentials(user, pass string) Option {
	return func(c *Config) { c.Username = user; c.Password = pass }
}

// WithCharset sets the mysql connection charset (e.g. "utf8mb4").
func WithCharset(charset string) Option { return func(c *Config) { c.Charset = charset } }

// WithSearchPath sets the postgres search_path, consulted in order.
func WithSearchPath(schemas ...string) Option {
	return func(c *Config) { c.SearchPath = schemas }
}

// WithForeignKeys enables sqlite's foreign_keys pragma on open.
func WithForeignKeys(enabled bool) Option { return func(c *Config) { c.ForeignKeys = enabled } }

// NewConfig builds a Config for the given driver (dialect.MySQL,
// dialect.Postgres, dialect.SQLite), applying opts and validating the
// result. A ConfigurationError is returned for an unrecognized driver, a
// missing Database, SearchPath on a driver other than postgres, or
// Host/Username on sqlite; other options that do not apply to the driver
// are accepted and ignored.
func NewConfig(name, driver string, opts ...Option) (*Config, error) {
	c := &Config{Driver: driver, Options: map[string]string{}}
	for _, opt := range opts {
		opt(c)
	}
	switch driver {
	case dialect.MySQL, dialect.Postgres:
		if c.Database == "" {
			return nil, velox.NewConfigurationError(name, "database", "required for "+driver)
		}
		if len(c.SearchPath) > 0 && driver != dialect.Postgres {
			return nil, velox.NewConfigurationError(name, "search_path", "only valid for postgres")
		}
	case dialect.SQLite:
		if c.Database == "" {
			return nil, velox.NewConfigurationError(name, "database", "required: path to the sqlite file, or \":memory:\"")
		}
		if c.Host != "" || c.Username != "" {
			return nil, velox.NewConfigurationError(name, "host/username", "not valid for sqlite")
		}
	default:
		return nil, velox.NewConfigurationError(name, "driver", "unrecognized driver "+driver)
	}
	return c, nil
}

// DSN renders the driver-specific data source name database/sql.Open
// expects.
func (c *Config) DSN() (string, error) {
	switch c.Driver {
	case dialect.MySQL:
		cs := c.Charset
		if cs == "" {
			cs = "utf8mb4"
		}
		auth := c.Username
		if c.Password != "" {
			auth += ":" + c.Password
		}
		host := c.Host
		if host == "" {
			host = "127.0.0.1"
		}
		port := c.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s@tcp(%s:%d)/%s?charset=%s&parseTime=true", auth, host, port, c.Database, cs), nil
	case dialect.Postgres:
		host := c.Host
		if host == "" {
			host = "localhost"
		}
		port := c.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   fmt.Sprintf("%s:%d", host, port),
			Path:   "/" + c.Database,
		}
		if c.Username != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		}
		q := url.Values{}
		q.Set("sslmode", "disable")
		if len(c.SearchPath) > 0 {
			q.Set("search_path", strings.Join(c.SearchPath, ","))
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	case dialect.SQLite:
		if !c.ForeignKeys {
			return c.Database, nil
		}
		sep := "?"
		if strings.Contains(c.Database, "?") {
			sep = "&"
		}
		return c.Database + sep + "_pragma=foreign_keys(1)", nil
	default:
		return "", velox.NewConfigurationError("", "driver", "unrecognized driver "+c.Driver)
	}
}

// ParseSearchPath splits a raw "search_path" setting (as accepted by
// libpq/psql, including quoted identifiers and "$user") into its ordered
// schema list, grounded on original_source/parsessearchpath.hpp/.cpp.
func ParseSearchPath(raw string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			out = append(out, strings.Trim(s, `"`))
		}
		cur.Reset()
	}
	for _, r := range raw {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ',' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
