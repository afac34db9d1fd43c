package plugins

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrPluginLoaded indicates a plugin with the same name is already loaded
	ErrPluginLoaded = errors.New("plugin already loaded")

	// ErrPluginNotFound indicates no plugin with the given name is loaded
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrPluginNameRequired indicates a plugin was loaded without a name
	ErrPluginNameRequired = errors.New("plugin name required")
)

// =============================================================================
// Manager
// =============================================================================

// Manager tracks loaded plugins by name.
type Manager struct {
	mu          sync.RWMutex
	plugins     map[string]*Plugin
	initialized bool

	listenerMu sync.RWMutex
	onLoaded   []func(*Plugin)
	onUnloaded []func(*Plugin)

	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		plugins: make(map[string]*Plugin),
		logger:  logger,
	}
}

func managerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Load adds p. Loaded listeners run first, then p's init callback if the
// server has already been initialized.
func (m *Manager) Load(p *Plugin) error {
	if p == nil || managerKey(p.Name()) == "" {
		return ErrPluginNameRequired
	}
	key := managerKey(p.Name())

	m.mu.Lock()
	if _, ok := m.plugins[key]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginLoaded, p.Name())
	}
	m.plugins[key] = p
	initialized := m.initialized
	m.mu.Unlock()

	m.logger.Info("plugin loaded",
		"plugin", p.Name(),
		"version", p.Version(),
		"author", p.Author(),
		"id", p.ID(),
	)
	for _, fn := range m.loadedListeners() {
		fn(p)
	}
	if initialized {
		p.initialize()
	}
	return nil
}

// Unload removes the plugin named name and notifies unload listeners.
func (m *Manager) Unload(name string) (*Plugin, error) {
	key := managerKey(name)

	m.mu.Lock()
	p, ok := m.plugins[key]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	delete(m.plugins, key)
	m.mu.Unlock()

	m.logger.Info("plugin unloaded", "plugin", p.Name(), "id", p.ID())
	for _, fn := range m.unloadedListeners() {
		fn(p)
	}
	return p, nil
}

func (m *Manager) Get(name string) (*Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plugins[managerKey(name)]
	return p, ok
}

// All returns loaded plugins sorted by name.
func (m *Manager) All() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return managerKey(out[i].Name()) < managerKey(out[j].Name())
	})
	return out
}

// MarkInitialized runs every loaded plugin's init callback once. Plugins
// loaded later are initialized by Load.
func (m *Manager) MarkInitialized() {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = true
	m.mu.Unlock()

	for _, p := range m.All() {
		p.initialize()
	}
}

func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

func (m *Manager) OnLoaded(fn func(*Plugin)) {
	if fn == nil {
		return
	}
	m.listenerMu.Lock()
	m.onLoaded = append(m.onLoaded, fn)
	m.listenerMu.Unlock()
}

func (m *Manager) OnUnloaded(fn func(*Plugin)) {
	if fn == nil {
		return
	}
	m.listenerMu.Lock()
	m.onUnloaded = append(m.onUnloaded, fn)
	m.listenerMu.Unlock()
}

func (m *Manager) loadedListeners() []func(*Plugin) {
	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	return m.onLoaded
}

func (m *Manager) unloadedListeners() []func(*Plugin) {
	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	return m.onUnloaded
}
