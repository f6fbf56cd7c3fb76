// Package autostart toggles whether the application is launched when the
// user logs into the desktop session.
//
// One Backend exists per supported platform: login items on macOS and an
// XDG autostart desktop file on Linux. The Manager dispatches to the backend
// selected at construction; on any other platform it is a silent no-op.
package autostart

import (
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// Backend provides one platform-specific autostart mechanism.
// Enable and Disable are idempotent.
type Backend interface {
	Name() string
	Enable() error
	Disable() error
	IsEnabled() (bool, error)
}

var (
	// ErrUnsupportedPlatform is reported by Manager.Supported. SetAutostart
	// never returns it.
	ErrUnsupportedPlatform = errors.New("autostart is not supported on this platform")

	// ErrMalformedTemplate means the desktop template lacks the generic
	// Exec line. This is a packaging defect, not a runtime condition.
	ErrMalformedTemplate = errors.New("desktop template has no generic Exec line")
)

// ResourceError reports a failure to access the filesystem, the login-items
// list or the template resource.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Manager is the single entry point used by the application.
type Manager struct {
	backend Backend
	logger  *zap.Logger
}

// NewManager wraps backend. A nil backend yields a Manager for an
// unsupported platform.
func NewManager(backend Backend, logger *zap.Logger) *Manager {
	return &Manager{backend: backend, logger: logger}
}

// Supported returns ErrUnsupportedPlatform when no backend applies.
func (m *Manager) Supported() error {
	if m.backend == nil {
		return ErrUnsupportedPlatform
	}
	return nil
}

// BackendName returns the active backend name, or "none".
func (m *Manager) BackendName() string {
	if m.backend == nil {
		return "none"
	}
	return m.backend.Name()
}

// SetAutostart brings the registration to the requested state. Failures are
// logged and returned; the persisted state is left as it was.
func (m *Manager) SetAutostart(enabled bool) error {
	if m.backend == nil {
		m.logger.Debug("Autostart not supported, skipping",
			zap.String("os", runtime.GOOS),
			zap.Bool("enabled", enabled))
		return nil
	}

	var err error
	if enabled {
		err = m.backend.Enable()
	} else {
		err = m.backend.Disable()
	}
	if err != nil {
		m.logger.Error("Failed to update autostart",
			zap.String("backend", m.backend.Name()),
			zap.Bool("enabled", enabled),
			zap.Error(err))
		return fmt.Errorf("setting autostart to %t: %w", enabled, err)
	}
	return nil
}

// IsEnabled reports whether a registration currently exists. It is always
// false on unsupported platforms.
func (m *Manager) IsEnabled() (bool, error) {
	if m.backend == nil {
		return false, nil
	}
	return m.backend.IsEnabled()
}
