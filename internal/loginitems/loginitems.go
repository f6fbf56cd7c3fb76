// Package loginitems gives scoped access to the macOS session login-items
// list. The list is owned by the OS; a Session is opened, used, and closed
// within a single operation so no handle outlives it.
//
// The default List drives System Events through osascript, so it needs no
// cgo and can be exercised on any host with a substitute Runner.
package loginitems

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// ErrSessionClosed is returned by Session methods called after Close.
var ErrSessionClosed = errors.New("login items session closed")

// Entry is one record of the login-items list.
type Entry struct {
	Name   string
	URL    string // file:// URL of the item
	Hidden bool
}

// Session is an open handle on the login-items list.
type Session interface {
	// Snapshot returns the entries in list order.
	Snapshot() ([]Entry, error)
	// Insert appends an item for path at the end of the list.
	Insert(path string, hidden bool) error
	// Remove deletes the given entry. Entries are addressed by name.
	Remove(e Entry) error
	Close() error
}

// List opens sessions on the login-items list.
type List interface {
	Open() (Session, error)
}

// Runner executes an AppleScript program and returns its stdout.
type Runner func(script string) ([]byte, error)

// OSAScript runs script through /usr/bin/osascript, feeding it on stdin.
func OSAScript(script string) ([]byte, error) {
	cmd := exec.Command("osascript", "-")
	cmd.Stdin = strings.NewReader(script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("osascript: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("osascript: %w", err)
	}
	return out, nil
}

// SystemEvents is the System Events backed List.
type SystemEvents struct {
	run Runner
}

// NewSystemEvents returns a List using run, or OSAScript when run is nil.
func NewSystemEvents(run Runner) *SystemEvents {
	if run == nil {
		run = OSAScript
	}
	return &SystemEvents{run: run}
}

// Open probes System Events and returns a session on the list.
func (s *SystemEvents) Open() (Session, error) {
	if _, err := s.run(probeScript); err != nil {
		return nil, fmt.Errorf("opening login items: %w", err)
	}
	return &session{run: s.run}, nil
}

type session struct {
	run    Runner
	closed bool
}

const probeScript = `tell application "System Events" to count login items`

const snapshotScript = `set out to ""
tell application "System Events"
	repeat with li in login items
		set out to out & (name of li) & tab & (path of li) & tab & (hidden of li) & linefeed
	end repeat
end tell
return out`

func (s *session) Snapshot() ([]Entry, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	out, err := s.run(snapshotScript)
	if err != nil {
		return nil, fmt.Errorf("listing login items: %w", err)
	}
	return parseSnapshot(string(out)), nil
}

func (s *session) Insert(path string, hidden bool) error {
	if s.closed {
		return ErrSessionClosed
	}
	script := fmt.Sprintf(
		`tell application "System Events" to make login item at end with properties {path:%s, hidden:%t}`,
		quote(path), hidden)
	if _, err := s.run(script); err != nil {
		return fmt.Errorf("adding login item %s: %w", path, err)
	}
	return nil
}

func (s *session) Remove(e Entry) error {
	if s.closed {
		return ErrSessionClosed
	}
	script := fmt.Sprintf(`tell application "System Events" to delete login item %s`, quote(e.Name))
	if _, err := s.run(script); err != nil {
		return fmt.Errorf("removing login item %s: %w", e.Name, err)
	}
	return nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}

// parseSnapshot reads the tab-separated name/path/hidden lines produced by
// snapshotScript. Malformed lines and unnamed items, which cannot be
// addressed by Remove, are skipped.
func parseSnapshot(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		fields := strings.Split(line, "\t")
		if len(fields) != 3 || fields[0] == "" || fields[1] == "" {
			continue
		}
		entries = append(entries, Entry{
			Name:   fields[0],
			URL:    FileURL(fields[1]),
			Hidden: fields[2] == "true",
		})
	}
	return entries
}

// FileURL converts an absolute path to its file:// URL form.
func FileURL(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}

// quote renders s as an AppleScript string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
