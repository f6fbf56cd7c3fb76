package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/paolobenve/vorta/internal/sandbox"
)

// startupBlock is appended to every generated entry. The delay keeps the
// application from racing the desktop environment at login.
const startupBlock = `StartupNotify=false
X-GNOME-Autostart-enabled=true
X-GNOME-Autostart-Delay=20
`

var startupKeys = []string{"StartupNotify", "X-GNOME-Autostart-enabled", "X-GNOME-Autostart-Delay"}

// ContextResolver resolves the sandbox state and autostart directory.
// Locate has no side effects; Resolve also creates the directory.
type ContextResolver interface {
	Locate() (sandbox.Context, error)
	Resolve() (sandbox.Context, error)
}

// DesktopOptions configures the desktop-file backend.
type DesktopOptions struct {
	Command       string // generic command on the template's Exec line
	AppID         string // reverse-domain id passed to the sandbox runner
	DaemonizeFlag string
	Runner        string // sandbox runner, e.g. "flatpak"
	FileName      string
	Template      func() ([]byte, error)
	Resolver      ContextResolver
}

type desktopFileBackend struct {
	opts   DesktopOptions
	logger *zap.Logger
}

// NewDesktopFileBackend returns a Backend writing an XDG autostart entry.
func NewDesktopFileBackend(opts DesktopOptions, logger *zap.Logger) Backend {
	return &desktopFileBackend{opts: opts, logger: logger}
}

func (b *desktopFileBackend) Name() string { return "desktop-file" }

// Enable renders the template and writes it over any existing entry.
func (b *desktopFileBackend) Enable() error {
	ctx, err := b.opts.Resolver.Resolve()
	if err != nil {
		return &ResourceError{Op: "resolving autostart directory", Err: err}
	}

	tmpl, err := b.opts.Template()
	if err != nil {
		return err
	}

	text, err := RenderDesktopEntry(string(tmpl), "Exec="+b.opts.Command, b.execLine(ctx.Sandboxed))
	if err != nil {
		return err
	}

	path := filepath.Join(ctx.ConfigDir, b.opts.FileName)
	if err := writeFileAtomic(path, []byte(text), 0644); err != nil {
		return &ResourceError{Op: "writing desktop file", Path: path, Err: err}
	}

	b.logger.Info("Wrote autostart entry",
		zap.String("path", path),
		zap.Bool("sandboxed", ctx.Sandboxed))
	return nil
}

// Disable deletes the entry. A missing entry is not an error.
func (b *desktopFileBackend) Disable() error {
	path, err := b.entryPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ResourceError{Op: "removing desktop file", Path: path, Err: err}
	}
	b.logger.Info("Removed autostart entry", zap.String("path", path))
	return nil
}

// IsEnabled checks whether the autostart entry exists. It does not create
// the autostart directory.
func (b *desktopFileBackend) IsEnabled() (bool, error) {
	path, err := b.entryPath()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &ResourceError{Op: "checking desktop file", Path: path, Err: err}
	}
	return true, nil
}

func (b *desktopFileBackend) entryPath() (string, error) {
	ctx, err := b.opts.Resolver.Locate()
	if err != nil {
		return "", &ResourceError{Op: "resolving autostart directory", Err: err}
	}
	return filepath.Join(ctx.ConfigDir, b.opts.FileName), nil
}

// execLine builds the concrete Exec line, e.g. "Exec=vorta --daemonize" or
// "Exec=flatpak run com.borgbase.Vorta --daemonize".
func (b *desktopFileBackend) execLine(sandboxed bool) string {
	var args []string
	if sandboxed {
		args = []string{b.opts.Runner, "run", b.opts.AppID}
	} else {
		args = []string{b.opts.Command}
	}
	if b.opts.DaemonizeFlag != "" {
		args = append(args, b.opts.DaemonizeFlag)
	}
	return "Exec=" + strings.Join(args, " ")
}

// RenderDesktopEntry replaces the genericExec token with execLine and appends
// the startup block. The token matches a whole line or a line continuing with
// a space, whose arguments are kept: "Exec=vorta %U" becomes
// "Exec=vorta --daemonize %U", while "Exec=vorta-helper" is left alone.
// Existing startup keys are dropped so the block appears exactly once.
func RenderDesktopEntry(template, genericExec, execLine string) (string, error) {
	lines := strings.Split(template, "\n")
	out := make([]string, 0, len(lines)+3)
	replaced := 0

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		switch {
		case line == genericExec || strings.HasPrefix(line, genericExec+" "):
			out = append(out, execLine+line[len(genericExec):])
			replaced++
		case isStartupKey(line):
		default:
			out = append(out, line)
		}
	}

	if replaced == 0 {
		return "", fmt.Errorf("%w: expected a line %q", ErrMalformedTemplate, genericExec)
	}

	text := strings.TrimRight(strings.Join(out, "\n"), "\n")
	return text + "\n" + startupBlock, nil
}

func isStartupKey(line string) bool {
	key, _, ok := strings.Cut(line, "=")
	if !ok {
		return false
	}
	key = strings.TrimSpace(key)
	for _, k := range startupKeys {
		if key == k {
			return true
		}
	}
	return false
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place, so a failed write leaves the previous file untouched.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
