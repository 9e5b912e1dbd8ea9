// Package model implements the active-record layer: an ordered attribute
// bag with original/dirty tracking, attribute casting (including an
// optional msgpack cast for blob-encoded structured attributes),
// mass-assignment guarding, relationship loading (Load, and Builder.With
// for eager loading a query's results), and the CRUD operations
// (Save/Delete/Fresh/Refresh) built on top of a query.Builder.
package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/syssam/velox"
	"github.com/syssam/velox/query"
	"github.com/syssam/velox/relation"
)

// CastType names how an attribute's stored value should be converted to
// and from its Go representation.
type CastType string

const (
	CastString   CastType = "string"
	CastInt      CastType = "int"
	CastFloat    CastType = "float"
	CastBool     CastType = "bool"
	CastDateTime CastType = "datetime"
	CastJSON     CastType = "json"
	// CastMsgpack decodes/encodes the attribute through
	// vmihailenco/msgpack/v5, for columns storing a packed binary blob
	// rather than JSON text (an optional attribute cast per SPEC_FULL.md's
	// domain-stack wiring).
	CastMsgpack CastType = "msgpack"
)

// Metadata describes one model type's table mapping: which column is the
// primary key, which attributes are mass-assignable, how timestamps are
// named, and which attributes carry a non-default cast.
type Metadata struct {
	Table        string
	PrimaryKey   string
	Fillable     []string
	Guarded      []string
	Casts        map[string]CastType
	Timestamps   bool
	CreatedAtCol string
	UpdatedAtCol string
	DateFormat   string

	// Relations maps a relation name to its definition, so Builder.With
	// and Model.Load can resolve it without the caller threading a
	// relation.Registry through every call.
	Relations relation.Registry
}

func (m *Metadata) createdAt() string {
	if m.CreatedAtCol != "" {
		return m.CreatedAtCol
	}
	return "created_at"
}

func (m *Metadata) updatedAt() string {
	if m.UpdatedAtCol != "" {
		return m.UpdatedAtCol
	}
	return "updated_at"
}

func (m *Metadata) dateFormat() string {
	if m.DateFormat != "" {
		return m.DateFormat
	}
	return time.RFC3339
}

func (m *Metadata) isFillable(key string) bool {
	if len(m.Guarded) == 1 && m.Guarded[0] == "*" {
		for _, f := range m.Fillable {
			if f == key {
				return true
			}
		}
		return false
	}
	for _, g := range m.Guarded {
		if g == key {
			return false
		}
	}
	if len(m.Fillable) == 0 {
		return true
	}
	for _, f := range m.Fillable {
		if f == key {
			return true
		}
	}
	return false
}

// Model is a single database row, held as an ordered sequence of
// attributes (so JSON-like serialization preserves column order) plus a
// key→index map (so lookups stay O(1)) and an original-value snapshot
// (so dirty-tracking needs no parallel bookkeeping).
type Model struct {
	meta *Metadata

	keys   []string
	values map[string]any
	index  map[string]int

	original map[string]any
	exists   bool

	relations map[string]any
}

// New returns an empty Model for the given Metadata, representing a row
// not yet persisted.
func New(meta *Metadata) *Model {
	return &Model{
		meta:      meta,
		values:    map[string]any{},
		index:     map[string]int{},
		original:  map[string]any{},
		relations: map[string]any{},
	}
}

// Hydrate builds a Model from a row already fetched from the database
// (so it starts out as not-dirty and exists=true), preserving the row's
// own column order.
func Hydrate(meta *Metadata, row map[string]any, order []string) *Model {
	m := New(meta)
	m.exists = true
	for _, k := range order {
		v, ok := row[k]
		if !ok {
			continue
		}
		m.setRaw(k, castIn(meta, k, v))
	}
	m.snapshotOriginal()
	return m
}

func (m *Model) setRaw(key string, value any) {
	if _, ok := m.index[key]; !ok {
		m.index[key] = len(m.keys)
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Model) snapshotOriginal() {
	m.original = make(map[string]any, len(m.values))
	for k, v := range m.values {
		m.original[k] = v
	}
}

// Exists reports whether this Model represents a row already persisted.
func (m *Model) Exists() bool { return m.exists }

// Get returns the attribute value for key, applying no cast beyond the
// one already applied when the attribute was set.
func (m *Model) Get(key string) any { return m.values[key] }

// Set assigns key directly, bypassing fillable/guarded checks (used by
// internal code and by Fill after it has already checked fillability).
func (m *Model) Set(key string, value any) {
	m.setRaw(key, castIn(m.meta, key, value))
}

// Fill mass-assigns attrs, returning a LogicError at the first key
// Metadata does not allow (Eloquent's fillable/guarded mass-assignment
// guard); keys assigned before that one stay assigned.
func (m *Model) Fill(attrs map[string]any) error {
	for k, v := range attrs {
		if !m.meta.isFillable(k) {
			return velox.NewLogicError("fill", fmt.Sprintf("attribute %q is not mass-assignable", k))
		}
		m.Set(k, v)
	}
	return nil
}

// ForceFill mass-assigns attrs without checking fillability, mirroring
// Eloquent's forceFill.
func (m *Model) ForceFill(attrs map[string]any) {
	for k, v := range attrs {
		m.Set(k, v)
	}
}

// Keys returns the attribute names in the order they were first set.
func (m *Model) Keys() []string { return append([]string{}, m.keys...) }

// GetKey returns the primary key value.
func (m *Model) GetKey() any { return m.values[m.meta.PrimaryKey] }

// KeyValue implements relation.Row so a *Model can be eager/lazy-loaded
// against directly, without an adapter.
func (m *Model) KeyValue() any { return m.GetKey() }

// IsDirty reports whether any attribute (or, if keys are given, any of
// those specific attributes) differs from its last-known-persisted value.
func (m *Model) IsDirty(keys ...string) bool {
	if len(keys) == 0 {
		keys = m.keys
	}
	for _, k := range keys {
		if !equalValue(m.values[k], m.original[k]) {
			return true
		}
	}
	return false
}

// GetDirty returns every attribute whose value differs from its
// last-known-persisted value, for use as an UPDATE's SET list.
func (m *Model) GetDirty() map[string]any {
	dirty := map[string]any{}
	for _, k := range m.keys {
		if !equalValue(m.values[k], m.original[k]) {
			dirty[k] = castOut(m.meta, k, m.values[k])
		}
	}
	return dirty
}

// GetChanges returns the same set as GetDirty: the attributes that
// currently differ from the last-persisted snapshot. No separate record of
// what the last Save changed is kept, so right after a Save it is empty.
func (m *Model) GetChanges() map[string]any { return m.GetDirty() }

func equalValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b) && (a == nil) == (b == nil)
}

// SetRelation attaches an already-loaded relation's result under name,
// read back by the relation package's eager/lazy loaders.
func (m *Model) SetRelation(name string, value any) { m.relations[name] = value }

// Relation returns a previously loaded relation's result, and whether it
// was loaded at all (distinguishing "loaded but empty" from "not loaded").
func (m *Model) Relation(name string) (any, bool) {
	v, ok := m.relations[name]
	return v, ok
}

// Load resolves the named relations (dot-separated nested paths, e.g.
// "posts.comments", are loaded one level at a time) against this single
// model, the lazy-load counterpart to Builder.With's eager load. Each name
// must be present in m.meta.Relations.
func (m *Model) Load(ctx context.Context, g query.Grammar, c query.Conn, names ...string) error {
	for _, name := range names {
		path := strings.Split(name, ".")
		if err := relation.EagerLoadNested(ctx, g, c, m.meta.Relations, []relation.Row{m}, path); err != nil {
			return err
		}
	}
	return nil
}

// Attributes returns a snapshot of every attribute in column order, with
// casts applied for storage (the shape Save's INSERT/UPDATE sends to the
// query builder).
func (m *Model) Attributes() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = castOut(m.meta, k, m.values[k])
	}
	return out
}

// ToMap returns a snapshot of every attribute with casts applied for
// presentation (the shape used for JSON-like serialization), preserving
// declaration order via the returned key slice.
func (m *Model) ToMap() (order []string, values map[string]any) {
	values = make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		values[k] = m.values[k]
	}
	return m.Keys(), values
}

// ---- persistence ----

// Query returns a fresh query.Builder scoped to this model's table.
func (m *Model) Query(g query.Grammar, c query.Conn) *query.Builder {
	return query.New(g, c).Table(m.meta.Table)
}

// Save inserts the model if it does not yet exist, or updates it (only
// its dirty attributes) if it does, touching timestamps as configured.
func (m *Model) Save(ctx context.Context, g query.Grammar, c query.Conn) error {
	if m.meta.Timestamps {
		m.touch()
	}
	if !m.exists {
		return m.insert(ctx, g, c)
	}
	return m.update(ctx, g, c)
}

func (m *Model) touch() {
	now := time.Now().UTC().Format(m.meta.dateFormat())
	m.setRaw(m.meta.updatedAt(), now)
	if !m.exists {
		m.setRaw(m.meta.createdAt(), now)
	}
}

func (m *Model) insert(ctx context.Context, g query.Grammar, c query.Conn) error {
	values := m.Attributes()
	if m.meta.PrimaryKey != "" {
		if _, hasPK := values[m.meta.PrimaryKey]; !hasPK {
			id, err := m.Query(g, c).InsertGetID(ctx, values, "")
			if err != nil {
				return err
			}
			m.setRaw(m.meta.PrimaryKey, id)
			m.exists = true
			m.snapshotOriginal()
			return nil
		}
	}
	if err := m.Query(g, c).Insert(ctx, values); err != nil {
		return err
	}
	m.exists = true
	m.snapshotOriginal()
	return nil
}

func (m *Model) update(ctx context.Context, g query.Grammar, c query.Conn) error {
	dirty := m.GetDirty()
	if len(dirty) == 0 {
		return nil
	}
	_, err := m.Query(g, c).Where(m.meta.PrimaryKey, "=", m.GetKey()).Update(ctx, dirty)
	if err != nil {
		return err
	}
	m.snapshotOriginal()
	return nil
}

// Delete removes this model's row.
func (m *Model) Delete(ctx context.Context, g query.Grammar, c query.Conn) error {
	if !m.exists {
		return velox.NewLogicError("delete", "model does not exist")
	}
	_, err := m.Query(g, c).Where(m.meta.PrimaryKey, "=", m.GetKey()).Delete(ctx)
	if err != nil {
		return err
	}
	m.exists = false
	return nil
}

// Fresh reloads this model's attributes from the database, returning a
// new Model and leaving the receiver untouched.
func (m *Model) Fresh(ctx context.Context, g query.Grammar, c query.Conn) (*Model, error) {
	row, err := m.Query(g, c).Where(m.meta.PrimaryKey, "=", m.GetKey()).First(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, velox.NewNotFoundErrorWithID(m.meta.Table, m.GetKey())
	}
	return Hydrate(m.meta, row, m.Keys()), nil
}

// Refresh reloads this model's attributes from the database in place.
func (m *Model) Refresh(ctx context.Context, g query.Grammar, c query.Conn) error {
	fresh, err := m.Fresh(ctx, g, c)
	if err != nil {
		return err
	}
	*m = *fresh
	return nil
}
