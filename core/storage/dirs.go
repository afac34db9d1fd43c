// Package storage resolves where cmdbridge keeps configuration, the
// permission database and logs, honouring XDG overrides.
package storage

import (
	"os"
	"path/filepath"
	"sync"
)

const (
	appName    = "cmdbridge"
	projectDir = ".cmdbridge"
)

// Dirs holds the per-user directories.
type Dirs struct {
	Config string // config.yaml
	Data   string // permission database
	State  string // logs
}

// ProjectDirs holds the directories of a server install.
type ProjectDirs struct {
	Root   string // .cmdbridge/
	Config string // .cmdbridge/config.yaml
	Local  string // .cmdbridge/local/ (machine-specific overrides)
}

var (
	globalDirs     *Dirs
	globalDirsOnce sync.Once
)

// ResolveDirs returns the platform directories. Results are cached after the
// first call.
func ResolveDirs() *Dirs {
	globalDirsOnce.Do(func() {
		globalDirs = resolveDirsImpl()
	})
	return globalDirs
}

func resolveDirsImpl() *Dirs {
	return &Dirs{
		Config: resolveDir("XDG_CONFIG_HOME", platformConfigDefault()),
		Data:   resolveDir("XDG_DATA_HOME", platformDataDefault()),
		State:  resolveDir("XDG_STATE_HOME", platformStateDefault()),
	}
}

func resolveDir(envVar, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	return fallback
}

// ResolveProjectDirs returns the install-local directories under projectRoot.
func ResolveProjectDirs(projectRoot string) *ProjectDirs {
	root := filepath.Join(projectRoot, projectDir)
	return &ProjectDirs{
		Root:   root,
		Config: filepath.Join(root, "config.yaml"),
		Local:  filepath.Join(root, "local"),
	}
}

func (d *Dirs) ConfigDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Config}, subpath...)...)
}

func (d *Dirs) DataDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Data}, subpath...)...)
}

func (d *Dirs) StateDir(subpath ...string) string {
	return filepath.Join(append([]string{d.State}, subpath...)...)
}

// PermissionsDB is the default location of the permission database.
func (d *Dirs) PermissionsDB() string {
	return d.DataDir("permissions.db")
}

func (d *Dirs) LogDir() string {
	return d.StateDir("logs")
}

// EnsureAll creates the user directories. Config is private to the user.
func (d *Dirs) EnsureAll() error {
	if err := os.MkdirAll(d.Config, 0700); err != nil {
		return err
	}
	for _, dir := range []string{d.Data, d.State, d.LogDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
