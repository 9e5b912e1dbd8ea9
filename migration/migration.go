// Package migration implements the migration runner: an ordered set of
// named migrations, a repository table tracking which have run and in
// which batch, and a Migrator driving run/rollback/refresh/fresh/status.
package migration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/syssam/velox"
	"github.com/syssam/velox/connection"
	"github.com/syssam/velox/schema"
)

// lockTimeout bounds how long Run waits to acquire the migration advisory
// lock on MySQL before giving up, so a crashed holder can't wedge every
// future migration run forever. The Postgres lock does not apply it.
const lockTimeout = 10 * time.Second

// Migration is one reversible schema change, identified by name (by
// convention a timestamp-prefixed filename-like string establishing
// execution order, e.g. "2024_01_01_000000_create_users_table").
type Migration interface {
	Name() string
	Up(ctx context.Context, conn *connection.Connection) error
	Down(ctx context.Context, conn *connection.Connection) error
}

// Record is one row of the migrations repository table.
type Record struct {
	Migration string
	Batch     int
}

// Repository is the DAO over the migrations table, tracking which
// migrations have run and in which batch.
type Repository struct {
	conn  *connection.Connection
	table string
}

// NewRepository returns a Repository storing its bookkeeping in table
// (conventionally "migrations") on conn.
func NewRepository(conn *connection.Connection, table string) *Repository {
	if table == "" {
		table = "migrations"
	}
	return &Repository{conn: conn, table: table}
}

// CreateRepository creates the migrations table if it does not exist yet.
func (r *Repository) CreateRepository(ctx context.Context) error {
	exists, err := r.conn.Table(r.table).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = r.conn.Table(r.table).Insert(ctx, map[string]any{"migration": "__init__", "batch": 0})
	if err != nil {
		return err
	}
	_, err = r.conn.Table(r.table).Where("migration", "=", "__init__").Delete(ctx)
	return err
}

// Ran returns the names of every migration already recorded as run.
func (r *Repository) Ran(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Table(r.table).OrderBy("batch", "asc").Get(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i], _ = row["migration"].(string)
	}
	return names, nil
}

// LastBatch returns the highest recorded batch number, or 0 if none.
func (r *Repository) LastBatch(ctx context.Context) (int, error) {
	v, err := r.conn.Table(r.table).Max(ctx, "batch")
	if err != nil || v == nil {
		return 0, err
	}
	return int(toInt(v)), nil
}

// NextBatch returns LastBatch()+1.
func (r *Repository) NextBatch(ctx context.Context) (int, error) {
	b, err := r.LastBatch(ctx)
	return b + 1, err
}

// GetMigrationsForRollback returns the migrations in the last batch (or
// the last `steps` batches), most-recently-run first.
func (r *Repository) GetMigrationsForRollback(ctx context.Context, steps int) ([]Record, error) {
	last, err := r.LastBatch(ctx)
	if err != nil {
		return nil, err
	}
	if steps <= 0 {
		steps = 1
	}
	rows, err := r.conn.Table(r.table).
		Where("batch", ">", last-steps).
		OrderBy("batch", "desc").
		OrderBy("migration", "desc").
		Get(ctx)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// GetAllMigrationsForRollback returns every recorded migration,
// most-recently-run first (used by "fresh"/"reset").
func (r *Repository) GetAllMigrationsForRollback(ctx context.Context) ([]Record, error) {
	rows, err := r.conn.Table(r.table).OrderBy("batch", "desc").OrderBy("migration", "desc").Get(ctx)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func toRecords(rows []map[string]any) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		name, _ := row["migration"].(string)
		out[i] = Record{Migration: name, Batch: int(toInt(row["batch"]))}
	}
	return out
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// Log records that migration ran in batch.
func (r *Repository) Log(ctx context.Context, migrationName string, batch int) error {
	return r.conn.Table(r.table).Insert(ctx, map[string]any{"migration": migrationName, "batch": batch})
}

// Delete removes migration's record (used on rollback).
func (r *Repository) Delete(ctx context.Context, migrationName string) error {
	_, err := r.conn.Table(r.table).Where("migration", "=", migrationName).Delete(ctx)
	return err
}

// Migrator runs an ordered set of registered Migrations against a
// Connection, using Repository to track what has already run.
type Migrator struct {
	conn       *connection.Connection
	repository *Repository
	migrations map[string]Migration
}

// NewMigrator returns a Migrator over conn, storing bookkeeping via repo.
func NewMigrator(conn *connection.Connection, repo *Repository) *Migrator {
	return &Migrator{conn: conn, repository: repo, migrations: map[string]Migration{}}
}

// Register adds a migration to the set the Migrator knows about.
func (m *Migrator) Register(mg Migration) { m.migrations[mg.Name()] = mg }

func (m *Migrator) sortedNames() []string {
	names := make([]string, 0, len(m.migrations))
	for n := range m.migrations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run runs every registered migration that has not yet run, in name
// order. With step false, every migration applied in this call shares one
// new batch number (so one Rollback call reverts them all together). With
// step true, each migration gets its own, separately incrementing batch
// number (Laravel's --step), so a single Rollback call reverts only the
// most recently applied migration.
func (m *Migrator) Run(ctx context.Context, step bool) ([]string, error) {
	unlock, err := m.conn.Lock(ctx, "velox_migrations_"+m.repository.table, lockTimeout)
	if err != nil {
		return nil, velox.NewQueryError(m.conn.Name(), "", nil, fmt.Errorf("acquire migration lock: %w", err))
	}
	defer unlock()

	if err := m.repository.CreateRepository(ctx); err != nil {
		return nil, err
	}
	ran, err := m.repository.Ran(ctx)
	if err != nil {
		return nil, err
	}
	alreadyRan := make(map[string]bool, len(ran))
	for _, n := range ran {
		alreadyRan[n] = true
	}
	batch, err := m.repository.NextBatch(ctx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range m.sortedNames() {
		if alreadyRan[name] {
			continue
		}
		mg := m.migrations[name]
		thisBatch := batch
		err := m.conn.Transaction(ctx, func(tx *connection.Connection) error {
			if err := mg.Up(ctx, tx); err != nil {
				return err
			}
			return m.repository.Log(ctx, name, thisBatch)
		})
		if err != nil {
			return applied, velox.NewQueryError(m.conn.Name(), "", nil, err)
		}
		applied = append(applied, name)
		if step {
			batch++
		}
	}
	return applied, nil
}

// Rollback reverts the last batch (or the last `steps` batches) of
// migrations, most-recently-run first.
func (m *Migrator) Rollback(ctx context.Context, steps int) ([]string, error) {
	records, err := m.repository.GetMigrationsForRollback(ctx, steps)
	if err != nil {
		return nil, err
	}
	return m.runDown(ctx, records)
}

// Reset reverts every migration that has ever run.
func (m *Migrator) Reset(ctx context.Context) ([]string, error) {
	records, err := m.repository.GetAllMigrationsForRollback(ctx)
	if err != nil {
		return nil, err
	}
	return m.runDown(ctx, records)
}

func (m *Migrator) runDown(ctx context.Context, records []Record) ([]string, error) {
	var reverted []string
	for _, rec := range records {
		mg, ok := m.migrations[rec.Migration]
		if !ok {
			continue
		}
		err := m.conn.Transaction(ctx, func(tx *connection.Connection) error {
			if err := mg.Down(ctx, tx); err != nil {
				return err
			}
			return m.repository.Delete(ctx, rec.Migration)
		})
		if err != nil {
			return reverted, velox.NewQueryError(m.conn.Name(), "", nil, err)
		}
		reverted = append(reverted, rec.Migration)
	}
	return reverted, nil
}

// Refresh rolls back every migration (running each Down in reverse order)
// then runs them all again under one new batch.
func (m *Migrator) Refresh(ctx context.Context) ([]string, error) {
	if _, err := m.Reset(ctx); err != nil {
		return nil, err
	}
	return m.Run(ctx, false)
}

// Fresh drops every table in the database outright — rather than running
// each migration's Down, which can drift from what Up actually created —
// then runs every registered migration from scratch under one new batch,
// Laravel's migrate:fresh.
func (m *Migrator) Fresh(ctx context.Context) ([]string, error) {
	if err := schema.NewBuilder(m.conn).DropAllTables(ctx); err != nil {
		return nil, err
	}
	return m.Run(ctx, false)
}

// StatusEntry reports whether one registered migration has run, and in
// which batch.
type StatusEntry struct {
	Migration string
	Ran       bool
	Batch     int
}

// Status reports the run/pending state of every registered migration.
func (m *Migrator) Status(ctx context.Context) ([]StatusEntry, error) {
	records, err := m.repository.GetAllMigrationsForRollback(ctx)
	if err != nil {
		return nil, err
	}
	batches := make(map[string]int, len(records))
	for _, r := range records {
		batches[r.Migration] = r.Batch
	}
	var out []StatusEntry
	for _, name := range m.sortedNames() {
		batch, ran := batches[name]
		out = append(out, StatusEntry{Migration: name, Ran: ran, Batch: batch})
	}
	return out, nil
}
