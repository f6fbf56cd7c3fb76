// Package platform detects which operating-system family the process runs on.
// Only two families carry an autostart mechanism: macOS login items and XDG
// autostart on Linux. Everything else reports Unsupported.
package platform

import (
	"context"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Family identifies an autostart-capable operating-system family.
type Family int

const (
	Unsupported Family = iota
	// Darwin registers through the session login-items list.
	Darwin
	// Linux registers through an XDG autostart desktop file.
	Linux
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case Darwin:
		return "darwin"
	case Linux:
		return "linux"
	default:
		return "unsupported"
	}
}

// Detect maps a GOOS value to its Family.
func Detect(goos string) Family {
	switch {
	case goos == "darwin":
		return Darwin
	case strings.HasPrefix(goos, "linux"):
		return Linux
	default:
		return Unsupported
	}
}

// Current returns the Family of the running process.
func Current() Family {
	return Detect(runtime.GOOS)
}

// Info describes the host for diagnostics.
type Info struct {
	Family          Family
	Platform        string // e.g. "ubuntu", "darwin"
	PlatformVersion string
	KernelVersion   string
}

// Describe gathers host details. The Family is always set even when the
// host query fails.
func Describe(ctx context.Context) (Info, error) {
	info := Info{Family: Current()}
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return info, err
	}
	info.Platform = h.Platform
	info.PlatformVersion = h.PlatformVersion
	info.KernelVersion = h.KernelVersion
	return info, nil
}
