//go:build !windows

package storage

import (
	"os"
	"path/filepath"
)

func platformConfigDefault() string {
	return filepath.Join(os.Getenv("HOME"), ".config", appName)
}

func platformDataDefault() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", appName)
}

func platformStateDefault() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "state", appName)
}
