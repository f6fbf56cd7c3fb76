// Package assets holds files bundled into the binary.
package assets

import _ "embed"

// DesktopTemplate is the XDG desktop entry used for autostart registration.
// Its Exec line carries the generic launch command that gets rewritten.
//
//go:embed metadata/com.borgbase.Vorta.desktop
var DesktopTemplate []byte
