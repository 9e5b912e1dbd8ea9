package connection

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/syssam/velox"
	"github.com/syssam/velox/dialect"
	dsql "github.com/syssam/velox/dialect/sql"
	"github.com/syssam/velox/query"
	"github.com/syssam/velox/query/grammar"
)

// LoggedQuery is one entry in a Connection's query log, recorded only
// while logging is enabled via EnableQueryLog.
type LoggedQuery struct {
	SQL      string
	Bindings []any
	Duration time.Duration
}

// Connection wraps a single named database/sql connection with the
// transaction/savepoint state machine, and implements query.Conn so a
// *query.Builder can run directly against it.
type Connection struct {
	name    string
	cfg     *Config
	drv     dialect.Driver
	grammar query.Grammar

	mu        sync.Mutex
	tx        *txState
	txDepth   int
	logging   bool
	queryLog  []LoggedQuery
	log       *slog.Logger
	pretend   bool
	pretended []query.Statement
}

// New opens a Connection for the given name and config, selecting the
// Grammar implementation that matches cfg.Driver.
func New(ctx context.Context, name string, cfg *Config) (*Connection, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	drv, err := dsql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, velox.NewConnectionLostError(name, err)
	}
	return NewFromDriver(name, cfg, drv), nil
}

// NewFromDriver wraps an already-open dialect.Driver (e.g. one returned by
// dialect/sql.NewStatsDriver, or a *sql.DB opened by a test harness via
// dialect/sql.OpenDB) as a named Connection.
func NewFromDriver(name string, cfg *Config, drv dialect.Driver) *Connection {
	return &Connection{
		name:    name,
		cfg:     cfg,
		drv:     drv,
		grammar: grammarFor(cfg.Driver),
		log:     slog.Default(),
	}
}

func grammarFor(driverName string) query.Grammar {
	switch driverName {
	case dialect.MySQL:
		return grammar.NewMySQL()
	case dialect.Postgres:
		return grammar.NewPostgres()
	default:
		return grammar.NewSQLite()
	}
}

// Name returns the connection's name as registered with a Manager.
func (c *Connection) Name() string { return c.name }

// Grammar returns the Grammar this connection compiles statements with,
// so callers can build a *query.Builder: query.New(conn.Grammar(), conn).
func (c *Connection) Grammar() query.Grammar { return c.grammar }

// Dialect returns the configured driver name ("mysql", "postgres",
// "sqlite"), satisfying schema.Builder's dbProvider so migration.Migrator
// can drive schema changes (Fresh's drop-all-tables, CreateSQL previews)
// directly off a Connection.
func (c *Connection) Dialect() string { return c.cfg.Driver }

// Table returns a fresh query.Builder against the given table.
func (c *Connection) Table(name string) *query.Builder {
	return query.New(c.grammar, c).Table(name)
}

// EnableQueryLog turns on in-memory query logging (supplemented from
// original_source's Connection::enableQueryLog).
func (c *Connection) EnableQueryLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logging = true
}

// DisableQueryLog turns off query logging without clearing prior entries.
func (c *Connection) DisableQueryLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logging = false
}

// GetQueryLog returns a copy of the recorded query log.
func (c *Connection) GetQueryLog() []LoggedQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LoggedQuery, len(c.queryLog))
	copy(out, c.queryLog)
	return out
}

func (c *Connection) logQuery(sql string, bindings []any, start time.Time) {
	c.mu.Lock()
	logging := c.logging
	if logging {
		c.queryLog = append(c.queryLog, LoggedQuery{SQL: sql, Bindings: bindings, Duration: time.Since(start)})
	}
	c.mu.Unlock()
	c.log.Debug("velox: query", "connection", c.name, "sql", sql, "duration", time.Since(start))
}

// Pretend runs fn without executing any statement against the driver,
// returning every statement that would have run. BeginTransaction, Commit
// and RollBack called inside fn are not covered: they and their savepoint
// statements still reach the driver.
func (c *Connection) Pretend(fn func(*Connection) error) ([]query.Statement, error) {
	c.mu.Lock()
	c.pretend = true
	c.pretended = nil
	c.mu.Unlock()
	err := fn(c)
	c.mu.Lock()
	stmts := c.pretended
	c.pretend = false
	c.pretended = nil
	c.mu.Unlock()
	return stmts, err
}

func (c *Connection) recordPretend(sql string, bindings []any) {
	c.mu.Lock()
	c.pretended = append(c.pretended, query.Statement{SQL: sql, Bindings: bindings})
	c.mu.Unlock()
}

func (c *Connection) isPretending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pretend
}

// ServerVersion reports the backend server's version string (supplemented
// from original_source). The schema builder and grammars do not consult
// it; their DDL is the same for every server version.
func (c *Connection) ServerVersion(ctx context.Context) (string, error) {
	var rows dsql.Rows
	versionQuery := map[string]string{
		dialect.MySQL:    "select version()",
		dialect.Postgres: "show server_version",
		dialect.SQLite:   "select sqlite_version()",
	}[c.cfg.Driver]
	if err := c.drv.Query(ctx, versionQuery, []any{}, &rows); err != nil {
		return "", c.wrapErr(versionQuery, nil, err)
	}
	defer rows.Close()
	var version string
	if rows.Next() {
		if err := rows.Scan(&version); err != nil {
			return "", c.wrapErr(versionQuery, nil, err)
		}
	}
	return version, nil
}

// driver returns the transaction to run statements against if one is
// open, otherwise the connection's base driver.
func (c *Connection) driver() dialect.Driver {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return c.tx.tx
	}
	return c.drv
}

func (c *Connection) wrapErr(sql string, bindings []any, err error) error {
	if err == nil {
		return nil
	}
	return velox.NewQueryError(c.name, sql, bindings, err)
}

// Close closes the underlying driver.
func (c *Connection) Close() error { return c.drv.Close() }

// dbProvider is implemented by dialect/sql.Driver; schema.Builder type-
// asserts against it to hand atlas a *sql.DB for introspection.
type dbProvider interface {
	DB() *sql.DB
}

// DB returns the underlying *sql.DB, if the wrapped driver exposes one
// (true for every driver opened via connection.New/dialect/sql.Open).
func (c *Connection) DB() (*sql.DB, bool) {
	p, ok := c.drv.(dbProvider)
	if !ok {
		return nil, false
	}
	return p.DB(), true
}

// lockProvider is implemented by dialect/sql.Driver; Connection asserts
// against it narrowly so migration.Migrator can take a cross-process
// advisory lock without dialect/sql.Driver becoming part of Connection's
// public surface.
type lockProvider interface {
	Lock(ctx context.Context, name string, timeout time.Duration) (func() error, error)
}

// Lock takes a named, cross-process advisory lock on the underlying
// driver, if it supports one (true for every driver opened via
// connection.New/dialect/sql.Open). Drivers that don't (a bare test
// double wrapping a *sql.DB some other way) get a no-op unlock rather
// than an error, so Lock is always safe to call unconditionally.
func (c *Connection) Lock(ctx context.Context, name string, timeout time.Duration) (func() error, error) {
	p, ok := c.drv.(lockProvider)
	if !ok {
		return func() error { return nil }, nil
	}
	return p.Lock(ctx, name, timeout)
}

// ---- query.Conn ----

// bindSQL rewrites the '?' placeholders every Grammar emits into whatever
// positional form the driver expects. Grammars always compile '?' so their
// output stays comparable across dialects; only Postgres's driver needs the
// $1, $2, ... rewrite, and it happens here, at the point of execution, not
// inside the grammar.
func (c *Connection) bindSQL(sql string) string {
	if c.cfg.Driver != dialect.Postgres {
		return sql
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}

func (c *Connection) Select(ctx context.Context, sql string, bindings []any) ([]map[string]any, error) {
	start := time.Now()
	defer func() { c.logQuery(sql, bindings, start) }()
	if c.isPretending() {
		c.recordPretend(sql, bindings)
		return nil, nil
	}
	var rows dsql.Rows
	if err := c.driver().Query(ctx, c.bindSQL(sql), bindings, &rows); err != nil {
		return nil, c.wrapErr(sql, bindings, err)
	}
	defer rows.Close()
	return scanRows(&rows)
}

func scanRows(rows *dsql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalize(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func (c *Connection) exec(ctx context.Context, sql string, bindings []any) (sql.Result, error) {
	start := time.Now()
	defer func() { c.logQuery(sql, bindings, start) }()
	if c.isPretending() {
		c.recordPretend(sql, bindings)
		return nil, nil
	}
	var res sql.Result
	if err := c.driver().Exec(ctx, c.bindSQL(sql), bindings, &res); err != nil {
		return nil, c.wrapErr(sql, bindings, err)
	}
	return res, nil
}

func (c *Connection) Insert(ctx context.Context, sqlStr string, bindings []any) error {
	_, err := c.exec(ctx, sqlStr, bindings)
	return err
}

func (c *Connection) InsertGetID(ctx context.Context, sqlStr string, bindings []any, sequence string) (int64, error) {
	if c.cfg.Driver == dialect.Postgres {
		rows, err := c.Select(ctx, sqlStr, bindings)
		if err == nil && len(rows) > 0 {
			for _, v := range rows[0] {
				return query.ToInt64(v), nil
			}
		}
		return 0, err
	}
	res, err := c.exec(ctx, sqlStr, bindings)
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, nil
	}
	return res.LastInsertId()
}

func (c *Connection) Update(ctx context.Context, sqlStr string, bindings []any) (int64, error) {
	res, err := c.exec(ctx, sqlStr, bindings)
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, nil
	}
	return res.RowsAffected()
}

func (c *Connection) Delete(ctx context.Context, sqlStr string, bindings []any) (int64, error) {
	return c.Update(ctx, sqlStr, bindings)
}

func (c *Connection) AffectingStatement(ctx context.Context, sqlStr string, bindings []any) (int64, error) {
	return c.Update(ctx, sqlStr, bindings)
}

func (c *Connection) Statement(ctx context.Context, sqlStr string, bindings []any) (bool, error) {
	rows, err := c.Select(ctx, sqlStr, bindings)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	for _, v := range rows[0] {
		b, _ := v.(bool)
		if b {
			return true, nil
		}
		if n := query.ToInt64(v); n != 0 {
			return true, nil
		}
		return b, nil
	}
	return false, nil
}
