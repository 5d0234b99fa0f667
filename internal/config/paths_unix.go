//go:build !windows

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	paths := []string{"pagegen.yaml", ".pagegen.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pagegen", "config.yaml"))
	}
	return paths
}
