package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/adalundhe/cmdbridge/core/storage"
)

const envPrefix = "CMDBRIDGE_"

type Manager struct {
	configPtr   atomic.Pointer[Config]
	dirs        *storage.Dirs
	projectRoot string
	watchers    []func(*Config)
	watcherMu   sync.RWMutex
	stopWatch   chan struct{}
	watchOnce   sync.Once
	logger      *slog.Logger
}

type Config struct {
	Commands    CommandsConfig    `yaml:"commands"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type CommandsConfig struct {
	// Prefix is stripped from chat and console lines before parsing.
	Prefix string `yaml:"prefix"`
	// Restricted lists glob patterns no plugin may register.
	Restricted []string `yaml:"restricted"`
	// HostName labels host built-ins in override notices.
	HostName string `yaml:"host_name"`
}

type PermissionsConfig struct {
	// Database is the SQLite file; empty means the user data dir.
	Database          string `yaml:"database"`
	PlayersGroup      string `yaml:"players_group"`
	AdminGroup        string `yaml:"admin_group"`
	AdminPermission   string `yaml:"admin_permission"`
	MinIdentityDigits int    `yaml:"min_identity_digits"`
	CacheSize         int    `yaml:"cache_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultGroups returns the groups created at server start, lowest rank first.
func (c PermissionsConfig) DefaultGroups() []string {
	return []string{c.PlayersGroup, c.AdminGroup}
}

// DatabasePath resolves the permission database location.
func (c *Config) DatabasePath(dirs *storage.Dirs) string {
	if c.Permissions.Database != "" || dirs == nil {
		return c.Permissions.Database
	}
	return dirs.PermissionsDB()
}

// NewManager creates a manager holding DefaultConfig. projectRoot is the
// server install whose .cmdbridge directory is layered over user config.
func NewManager(dirs *storage.Dirs, projectRoot string) *Manager {
	if projectRoot == "" {
		projectRoot = "."
	}
	m := &Manager{
		dirs:        dirs,
		projectRoot: projectRoot,
		stopWatch:   make(chan struct{}),
		logger:      slog.Default(),
	}
	m.configPtr.Store(DefaultConfig())
	return m
}

// SetLogger sets the logger used for reload failures seen by Watch.
func (m *Manager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

func DefaultConfig() *Config {
	return &Config{
		Commands: CommandsConfig{
			Prefix:     "/",
			Restricted: []string{},
			HostName:   "the host",
		},
		Permissions: PermissionsConfig{
			PlayersGroup:      "default",
			AdminGroup:        "admin",
			AdminPermission:   "admin",
			MinIdentityDigits: 17,
			CacheSize:         1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (m *Manager) Get() *Config {
	return m.configPtr.Load()
}

// Load rebuilds the configuration from defaults, the project file, the user
// file, the local override and finally CMDBRIDGE_* variables.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	layers := []struct {
		name string
		path string
	}{
		{"project config", m.projectConfigPath()},
		{"user config", m.userConfigPath()},
		{"local config", m.localConfigPath()},
	}
	for _, layer := range layers {
		if err := m.mergeYAMLFile(layer.path, cfg); err != nil {
			return fmt.Errorf("%s: %w", layer.name, err)
		}
	}

	m.applyEnvironment(cfg)

	m.configPtr.Store(cfg)
	m.notifyWatchers(cfg)

	return nil
}

// Paths returns the files Load reads, in merge order.
func (m *Manager) Paths() []string {
	paths := []string{m.projectConfigPath()}
	if user := m.userConfigPath(); user != "" {
		paths = append(paths, user)
	}
	return append(paths, m.localConfigPath())
}

func (m *Manager) projectConfigPath() string {
	return storage.ResolveProjectDirs(m.projectRoot).Config
}

func (m *Manager) userConfigPath() string {
	if m.dirs == nil {
		return ""
	}
	return m.dirs.ConfigDir("config.yaml")
}

func (m *Manager) localConfigPath() string {
	return filepath.Join(storage.ResolveProjectDirs(m.projectRoot).Local, "config.yaml")
}

func (m *Manager) mergeYAMLFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var layer Config
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	DeepMerge(cfg, &layer)
	return nil
}

func (m *Manager) applyEnvironment(cfg *Config) {
	if v := getenv("COMMANDS_PREFIX"); v != "" {
		cfg.Commands.Prefix = v
	}
	if v := getenv("COMMANDS_RESTRICTED"); v != "" {
		cfg.Commands.Restricted = splitList(v)
	}
	if v := getenv("HOST_NAME"); v != "" {
		cfg.Commands.HostName = v
	}
	if v := getenv("PERMISSIONS_DATABASE"); v != "" {
		cfg.Permissions.Database = v
	}
	if v := getenv("PERMISSIONS_PLAYERS_GROUP"); v != "" {
		cfg.Permissions.PlayersGroup = v
	}
	if v := getenv("PERMISSIONS_ADMIN_GROUP"); v != "" {
		cfg.Permissions.AdminGroup = v
	}
	if v := getenv("IDENTITY_MIN_DIGITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Permissions.MinIdentityDigits = n
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

// Close stops any running Watch.
func (m *Manager) Close() error {
	m.watchOnce.Do(func() {
		close(m.stopWatch)
	})
	return nil
}
