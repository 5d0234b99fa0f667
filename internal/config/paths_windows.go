//go:build windows

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	paths := []string{"pagegen.yaml", ".pagegen.yaml"}
	if appData := os.Getenv("APPDATA"); appData != "" {
		paths = append(paths, filepath.Join(appData, "pagegen", "config.yaml"))
	}
	return paths
}
