// Package sandbox detects whether the process runs inside a Flatpak-style
// sandbox and resolves the XDG autostart directory accordingly.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// DefaultMarkerPath is the file Flatpak places at the root of every sandbox.
const DefaultMarkerPath = "/.flatpak-info"

// Context is the result of a resolution.
type Context struct {
	Sandboxed bool
	ConfigDir string // autostart directory
}

// Resolver resolves a Context. The zero value uses the real host.
type Resolver struct {
	MarkerPath string

	// HomeDir and ConfigHome are replaced in tests.
	HomeDir    func() (string, error)
	ConfigHome func() string
}

// NewResolver returns a Resolver probing markerPath, or DefaultMarkerPath if empty.
func NewResolver(markerPath string) *Resolver {
	return &Resolver{MarkerPath: markerPath}
}

// IsSandboxed reports whether the marker file is present.
func (r *Resolver) IsSandboxed() bool {
	return markerExists(r.markerPath())
}

// Locate determines the sandbox state and the autostart directory without
// touching the filesystem beyond the marker probe.
//
// Inside a sandbox the directory is always ~/.config/autostart: the sandbox
// maps XDG_CONFIG_HOME into its own tree, and the host session only reads
// the real one.
func (r *Resolver) Locate() (Context, error) {
	ctx := Context{Sandboxed: r.IsSandboxed()}

	if ctx.Sandboxed {
		home, err := r.homeDir()
		if err != nil {
			return Context{}, fmt.Errorf("resolving home directory: %w", err)
		}
		ctx.ConfigDir = filepath.Join(home, ".config", "autostart")
	} else {
		ctx.ConfigDir = filepath.Join(r.configHome(), "autostart")
	}
	return ctx, nil
}

// Resolve is Locate followed by creating the directory with its parents
// when missing. Call it before writing into the directory.
func (r *Resolver) Resolve() (Context, error) {
	ctx, err := r.Locate()
	if err != nil {
		return Context{}, err
	}
	if err := os.MkdirAll(ctx.ConfigDir, 0755); err != nil {
		return Context{}, fmt.Errorf("creating autostart directory: %w", err)
	}
	return ctx, nil
}

func (r *Resolver) markerPath() string {
	if r.MarkerPath == "" {
		return DefaultMarkerPath
	}
	return r.MarkerPath
}

func (r *Resolver) homeDir() (string, error) {
	if r.HomeDir != nil {
		return r.HomeDir()
	}
	return os.UserHomeDir()
}

func (r *Resolver) configHome() string {
	if r.ConfigHome != nil {
		return r.ConfigHome()
	}
	return xdg.ConfigHome
}
