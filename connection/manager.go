package connection

import (
	"context"
	"sync"

	"github.com/syssam/velox"
)

// Manager is a named-connection registry: callers register a Config once
// per name and fetch (or lazily open) the *Connection by name thereafter.
type Manager struct {
	mu      sync.Mutex
	configs map[string]*Config
	conns   map[string]*Connection
	def     string
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{configs: map[string]*Config{}, conns: map[string]*Connection{}}
}

// AddConnection registers cfg under name without opening it.
func (m *Manager) AddConnection(name string, cfg *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[name] = cfg
	if m.def == "" {
		m.def = name
	}
}

// SetDefaultConnection changes which name Connection() uses when called
// with an empty string.
func (m *Manager) SetDefaultConnection(name string) { m.mu.Lock(); m.def = name; m.mu.Unlock() }

// GetDefaultConnection returns the current default connection name.
func (m *Manager) GetDefaultConnection() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.def
}

// Connection returns the open *Connection for name (the default
// connection if name is empty), opening it lazily on first use.
func (m *Manager) Connection(ctx context.Context, name string) (*Connection, error) {
	m.mu.Lock()
	if name == "" {
		name = m.def
	}
	if conn, ok := m.conns[name]; ok {
		m.mu.Unlock()
		return conn, nil
	}
	cfg, ok := m.configs[name]
	m.mu.Unlock()
	if !ok {
		return nil, velox.NewConfigurationError(name, "connection", "no configuration registered for connection "+name)
	}
	conn, err := New(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.conns[name] = conn
	m.mu.Unlock()
	return conn, nil
}

// PurgeConnection closes and forgets the open connection for name, if any,
// so the next Connection(ctx, name) call reopens it from its Config.
func (m *Manager) PurgeConnection(name string) error {
	m.mu.Lock()
	conn, ok := m.conns[name]
	delete(m.conns, name)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

// Reconnect purges then immediately reopens the connection for name.
func (m *Manager) Reconnect(ctx context.Context, name string) (*Connection, error) {
	if err := m.PurgeConnection(name); err != nil {
		return nil, err
	}
	return m.Connection(ctx, name)
}

// Disconnect closes every open connection without forgetting their
// configuration.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for name, conn := range m.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.conns, name)
	}
	return firstErr
}
