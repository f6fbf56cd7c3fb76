package autostart

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/paolobenve/vorta/internal/loginitems"
)

// loginItemsBackend registers the application bundle in the session
// login-items list. The list does not enforce uniqueness, so Enable checks
// for an existing entry before inserting.
type loginItemsBackend struct {
	list   loginitems.List
	bundle func() (string, error)
	logger *zap.Logger
}

// NewLoginItemsBackend returns a Backend using list. bundle resolves the
// application bundle path at call time.
func NewLoginItemsBackend(list loginitems.List, bundle func() (string, error), logger *zap.Logger) Backend {
	return &loginItemsBackend{list: list, bundle: bundle, logger: logger}
}

func (b *loginItemsBackend) Name() string { return "login-items" }

// Enable appends a hidden entry for the bundle unless one already exists.
func (b *loginItemsBackend) Enable() error {
	path, err := b.bundle()
	if err != nil {
		return &ResourceError{Op: "resolving application bundle", Err: err}
	}

	return b.withSession(func(s loginitems.Session) error {
		entries, err := s.Snapshot()
		if err != nil {
			return &ResourceError{Op: "reading login items", Err: err}
		}
		if e, ok := findEntry(entries, matchToken(path)); ok {
			b.logger.Debug("Login item already present", zap.String("url", e.URL))
			return nil
		}
		if err := s.Insert(path, true); err != nil {
			return &ResourceError{Op: "adding login item", Path: path, Err: err}
		}
		b.logger.Info("Added login item", zap.String("bundle", path))
		return nil
	})
}

// Disable removes the first entry matching the bundle, if any.
func (b *loginItemsBackend) Disable() error {
	path, err := b.bundle()
	if err != nil {
		return &ResourceError{Op: "resolving application bundle", Err: err}
	}

	return b.withSession(func(s loginitems.Session) error {
		entries, err := s.Snapshot()
		if err != nil {
			return &ResourceError{Op: "reading login items", Err: err}
		}
		e, ok := findEntry(entries, matchToken(path))
		if !ok {
			return nil
		}
		if err := s.Remove(e); err != nil {
			return &ResourceError{Op: "removing login item", Path: e.URL, Err: err}
		}
		b.logger.Info("Removed login item", zap.String("url", e.URL))
		return nil
	})
}

// IsEnabled checks whether the login-items list holds an entry matching the bundle.
func (b *loginItemsBackend) IsEnabled() (bool, error) {
	path, err := b.bundle()
	if err != nil {
		return false, &ResourceError{Op: "resolving application bundle", Err: err}
	}

	var found bool
	err = b.withSession(func(s loginitems.Session) error {
		entries, err := s.Snapshot()
		if err != nil {
			return &ResourceError{Op: "reading login items", Err: err}
		}
		_, found = findEntry(entries, matchToken(path))
		return nil
	})
	return found, err
}

// withSession opens the list, runs fn and always closes the session.
func (b *loginItemsBackend) withSession(fn func(loginitems.Session) error) (err error) {
	s, err := b.list.Open()
	if err != nil {
		return &ResourceError{Op: "opening login items", Err: err}
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = &ResourceError{Op: "closing login items", Err: cerr}
		}
	}()
	return fn(s)
}

// matchToken is the URL-escaped bundle file name, e.g. "Vorta.app".
// Entries are matched by substring against their URL. This also matches
// an unrelated item whose path happens to contain the same name. Removal
// is keyed by item name, so when two items share a name System Events may
// delete the other one.
func matchToken(bundlePath string) string {
	u := url.URL{Path: filepath.Base(bundlePath)}
	return u.EscapedPath()
}

func findEntry(entries []loginitems.Entry, token string) (loginitems.Entry, bool) {
	for _, e := range entries {
		if strings.Contains(e.URL, token) {
			return e, true
		}
	}
	return loginitems.Entry{}, false
}

// BundleFromExecutable returns the enclosing .app bundle of exe, or exe
// itself when it is not inside a bundle.
func BundleFromExecutable(exe string) string {
	if idx := strings.Index(exe, ".app/"); idx != -1 {
		return exe[:idx+len(".app")]
	}
	return exe
}

// BundleResolver returns override when set, otherwise a resolver that
// derives the bundle from the running executable.
func BundleResolver(override string) func() (string, error) {
	if override != "" {
		return func() (string, error) { return override, nil }
	}
	return func() (string, error) {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locating executable: %w", err)
		}
		resolved, err := filepath.EvalSymlinks(exe)
		if err != nil {
			return "", fmt.Errorf("resolving executable symlinks: %w", err)
		}
		return BundleFromExecutable(resolved), nil
	}
}
