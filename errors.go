// Package velox is the root of the Velox ORM: it holds the error taxonomy
// shared by every component (query, connection, schema, model, relation,
// migration) and the Cache interface query results may optionally go
// through. See the sub-packages for the query builder, connection manager,
// schema builder, model layer, relationship engine and migration runner.
package velox

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is against any of the typed errors
// below: a bare sentinel plus a detail-carrying struct whose Is() matches
// it.
var (
	// ErrConfigurationInvalid is returned when a connection configuration
	// is missing a required option, names an unrecognized driver, or sets
	// an option banned for that driver.
	ErrConfigurationInvalid = errors.New("velox: invalid configuration")

	// ErrConnectionLost is returned when a lost-connection condition is
	// detected while executing a statement.
	ErrConnectionLost = errors.New("velox: connection lost")

	// ErrQuery wraps a SQL-level error returned by the driver.
	ErrQuery = errors.New("velox: query error")

	// ErrUnsupportedFeature is returned when the requested operation is
	// not supported by the current dialect.
	ErrUnsupportedFeature = errors.New("velox: unsupported feature")

	// ErrLogic is returned for API misuse: calling a terminal operation on
	// an inconsistent builder, requesting an unknown relation, or calling
	// FirstOrFail when no row matches (its NotFoundError matches both
	// ErrLogic and ErrNotFound).
	ErrLogic = errors.New("velox: logic error")

	// ErrDomain is returned for invalid domain values, such as a
	// timestamp string that does not match the declared date format.
	ErrDomain = errors.New("velox: domain error")

	// ErrNotFound is returned by FirstOrFail when no row matches.
	ErrNotFound = errors.New("velox: entity not found")

	// ErrNotSingular is returned when a query expected to return exactly
	// one row returned zero or more than one.
	ErrNotSingular = errors.New("velox: entity not singular")

	// ErrTxStarted is returned when attempting to start a new top-level
	// transaction while one is already open on the same connection.
	ErrTxStarted = errors.New("velox: cannot start a transaction within a transaction")
)

// ConfigurationError reports a rejected connection configuration option.
type ConfigurationError struct {
	Connection string
	Option     string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("velox: configuration %q invalid for connection %q: %s", e.Option, e.Connection, e.Reason)
}

func (e *ConfigurationError) Is(err error) bool { return err == ErrConfigurationInvalid }

// NewConfigurationError returns a new ConfigurationError.
func NewConfigurationError(connection, option, reason string) error {
	return &ConfigurationError{Connection: connection, Option: option, Reason: reason}
}

// ConnectionLostError reports a lost-connection condition observed while
// executing a statement on a named connection.
type ConnectionLostError struct {
	Connection string
	Err        error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("velox: connection %q lost: %v", e.Connection, e.Err)
}

func (e *ConnectionLostError) Unwrap() error { return e.Err }
func (e *ConnectionLostError) Is(err error) bool { return err == ErrConnectionLost }

// NewConnectionLostError returns a new ConnectionLostError.
func NewConnectionLostError(connection string, err error) error {
	return &ConnectionLostError{Connection: connection, Err: err}
}

// QueryError wraps a driver-level SQL error with the connection name and
// the offending SQL/bindings, truncating the SQL for display so a
// user-visible message stays readable.
type QueryError struct {
	Connection string
	SQL        string
	Bindings   []any
	Err        error
}

const queryErrorSQLLimit = 200

func (e *QueryError) Error() string {
	sql := e.SQL
	if len(sql) > queryErrorSQLLimit {
		sql = sql[:queryErrorSQLLimit] + "..."
	}
	return fmt.Sprintf("velox: query error on connection %q: %v (SQL: %s)", e.Connection, e.Err, sql)
}

func (e *QueryError) Unwrap() error { return e.Err }
func (e *QueryError) Is(err error) bool { return err == ErrQuery }

// NewQueryError returns a new QueryError.
func NewQueryError(connection, sql string, bindings []any, err error) error {
	return &QueryError{Connection: connection, SQL: sql, Bindings: bindings, Err: err}
}

// UnsupportedFeatureError reports a request for a feature the current
// dialect's grammar cannot express.
type UnsupportedFeatureError struct {
	Dialect string
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("velox: %s does not support %s", e.Dialect, e.Feature)
}

func (e *UnsupportedFeatureError) Is(err error) bool { return err == ErrUnsupportedFeature }

// NewUnsupportedFeatureError returns a new UnsupportedFeatureError.
func NewUnsupportedFeatureError(dialectName, feature string) error {
	return &UnsupportedFeatureError{Dialect: dialectName, Feature: feature}
}

// LogicError reports API misuse.
type LogicError struct {
	Op     string
	Reason string
}

func (e *LogicError) Error() string {
	return fmt.Sprintf("velox: %s: %s", e.Op, e.Reason)
}

func (e *LogicError) Is(err error) bool { return err == ErrLogic }

// NewLogicError returns a new LogicError.
func NewLogicError(op, reason string) error {
	return &LogicError{Op: op, Reason: reason}
}

// DomainError reports an invalid domain value, such as a date string that
// does not parse against the declared format.
type DomainError struct {
	Field  string
	Value  any
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("velox: invalid value for %q (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *DomainError) Is(err error) bool { return err == ErrDomain }

// NewDomainError returns a new DomainError.
func NewDomainError(field string, value any, reason string) error {
	return &DomainError{Field: field, Value: value, Reason: reason}
}

// NotFoundError represents an error when a requested entity does not exist.
type NotFoundError struct {
	Label string
	ID    any
}

func (e *NotFoundError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("velox: %s not found (id=%v)", e.Label, e.ID)
	}
	return fmt.Sprintf("velox: %s not found", e.Label)
}

func (e *NotFoundError) Is(err error) bool { return err == ErrNotFound || err == ErrLogic }

// NewNotFoundError returns a new NotFoundError for the given entity label.
func NewNotFoundError(label string) error { return &NotFoundError{Label: label} }

// NewNotFoundErrorWithID returns a new NotFoundError carrying the id that
// was searched for.
func NewNotFoundErrorWithID(label string, id any) error {
	return &NotFoundError{Label: label, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a query expected exactly one
// result but received zero or multiple.
type NotSingularError struct {
	Label string
	Count int
}

func (e *NotSingularError) Error() string {
	if e.Count >= 0 {
		return fmt.Sprintf("velox: %s not singular (got %d results, expected 1)", e.Label, e.Count)
	}
	return fmt.Sprintf("velox: %s not singular", e.Label)
}

func (e *NotSingularError) Is(err error) bool { return err == ErrNotSingular }

// NewNotSingularErrorWithCount returns a new NotSingularError with the
// observed result count.
func NewNotSingularErrorWithCount(label string, count int) error {
	return &NotSingularError{Label: label, Count: count}
}
