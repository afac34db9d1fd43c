package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/cmdbridge/core/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.Dirs, string) {
	t.Helper()
	dirs := &storage.Dirs{
		Config: t.TempDir(),
		Data:   t.TempDir(),
		State:  t.TempDir(),
	}
	root := t.TempDir()
	return NewManager(dirs, root), dirs, root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "/", cfg.Commands.Prefix)
	assert.Empty(t, cfg.Commands.Restricted)
	assert.Equal(t, []string{"default", "admin"}, cfg.Permissions.DefaultGroups())
	assert.Equal(t, 17, cfg.Permissions.MinIdentityDigits)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestManagerGet(t *testing.T) {
	m, _, _ := newTestManager(t)

	cfg := m.Get()
	require.NotNil(t, cfg)
	assert.Equal(t, "/", cfg.Commands.Prefix)
}

func TestManagerLoadLayers(t *testing.T) {
	m, dirs, root := newTestManager(t)

	writeFile(t, filepath.Join(root, ".cmdbridge", "config.yaml"), `
commands:
  prefix: "!"
  restricted: [shutdown, "admin.*"]
permissions:
  admin_group: owners
`)
	writeFile(t, dirs.ConfigDir("config.yaml"), `
logging:
  level: debug
permissions:
  admin_group: staff
`)
	writeFile(t, filepath.Join(root, ".cmdbridge", "local", "config.yaml"), `
commands:
  host_name: Reign of Kings
`)

	require.NoError(t, m.Load())
	cfg := m.Get()

	assert.Equal(t, "!", cfg.Commands.Prefix)
	assert.Equal(t, []string{"shutdown", "admin.*"}, cfg.Commands.Restricted)
	assert.Equal(t, "Reign of Kings", cfg.Commands.HostName)
	assert.Equal(t, "staff", cfg.Permissions.AdminGroup)
	assert.Equal(t, "default", cfg.Permissions.PlayersGroup)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestManagerLoadInvalidYAML(t *testing.T) {
	m, dirs, _ := newTestManager(t)
	writeFile(t, dirs.ConfigDir("config.yaml"), "commands: [unclosed")

	err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user config")
	assert.Equal(t, "/", m.Get().Commands.Prefix)
}

func TestManagerEnvironmentOverride(t *testing.T) {
	m, dirs, _ := newTestManager(t)
	writeFile(t, dirs.ConfigDir("config.yaml"), "commands:\n  prefix: \"!\"\n")

	t.Setenv("CMDBRIDGE_COMMANDS_PREFIX", ".")
	t.Setenv("CMDBRIDGE_COMMANDS_RESTRICTED", "save, , shutdown")
	t.Setenv("CMDBRIDGE_IDENTITY_MIN_DIGITS", "5")
	t.Setenv("CMDBRIDGE_LOG_FORMAT", "JSON")
	t.Setenv("CMDBRIDGE_PERMISSIONS_DATABASE", "/tmp/perm.db")

	require.NoError(t, m.Load())
	cfg := m.Get()

	assert.Equal(t, ".", cfg.Commands.Prefix)
	assert.Equal(t, []string{"save", "shutdown"}, cfg.Commands.Restricted)
	assert.Equal(t, 5, cfg.Permissions.MinIdentityDigits)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/tmp/perm.db", cfg.DatabasePath(dirs))
}

func TestManagerInvalidEnvironmentIgnored(t *testing.T) {
	m, _, _ := newTestManager(t)
	t.Setenv("CMDBRIDGE_IDENTITY_MIN_DIGITS", "many")

	require.NoError(t, m.Load())
	assert.Equal(t, 17, m.Get().Permissions.MinIdentityDigits)
}

func TestConfigDatabasePath(t *testing.T) {
	dirs := &storage.Dirs{Data: "/data"}
	cfg := DefaultConfig()

	assert.Equal(t, filepath.Join("/data", "permissions.db"), cfg.DatabasePath(dirs))
	assert.Equal(t, "", cfg.DatabasePath(nil))
}

func TestManagerOnChange(t *testing.T) {
	m, _, _ := newTestManager(t)

	var seen *Config
	m.OnChange(func(cfg *Config) {
		seen = cfg
	})

	require.NoError(t, m.Load())
	assert.Same(t, m.Get(), seen)
}

func TestManagerReload(t *testing.T) {
	m, dirs, _ := newTestManager(t)
	path := dirs.ConfigDir("config.yaml")

	writeFile(t, path, "permissions:\n  cache_size: 3\n")
	require.NoError(t, m.Load())
	assert.Equal(t, 3, m.Get().Permissions.CacheSize)

	writeFile(t, path, "permissions:\n  cache_size: 7\n")
	require.NoError(t, m.Reload())
	assert.Equal(t, 7, m.Get().Permissions.CacheSize)
}

func TestManagerPaths(t *testing.T) {
	m, dirs, root := newTestManager(t)

	assert.Equal(t, []string{
		filepath.Join(root, ".cmdbridge", "config.yaml"),
		dirs.ConfigDir("config.yaml"),
		filepath.Join(root, ".cmdbridge", "local", "config.yaml"),
	}, m.Paths())

	bare := NewManager(nil, "")
	assert.Len(t, bare.Paths(), 2)
}

func TestManagerWatchReloads(t *testing.T) {
	m, dirs, _ := newTestManager(t)
	path := dirs.ConfigDir("config.yaml")
	writeFile(t, path, "commands:\n  prefix: \"!\"\n")
	require.NoError(t, m.Load())

	changed := make(chan *Config, 4)
	m.OnChange(func(cfg *Config) { changed <- cfg })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "commands:\n  prefix: \"?\"\n")

	select {
	case cfg := <-changed:
		assert.Equal(t, "?", cfg.Commands.Prefix)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	require.NoError(t, m.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop on Close")
	}
}

func TestManagerClose(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
