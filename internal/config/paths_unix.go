//go:build linux || darwin

package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

func configSearchPaths() []string {
	paths := []string{filepath.Join(xdg.ConfigHome, "vorta", "autostart.yaml")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".vorta", "autostart.yaml"))
	}
	return paths
}
