package autostart

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/paolobenve/vorta/assets"
	"github.com/paolobenve/vorta/internal/sandbox"
)

const testTemplate = "[Desktop Entry]\nName=Vorta\nExec=vorta\nType=Application\n"

type desktopFixture struct {
	backend    Backend
	root       string
	marker     string
	autostartD string
}

func newDesktopFixture(t *testing.T, sandboxed bool, template string) *desktopFixture {
	t.Helper()
	root := t.TempDir()
	marker := filepath.Join(root, ".flatpak-info")
	if sandboxed {
		if err := os.WriteFile(marker, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	home := filepath.Join(root, "home")
	resolver := &sandbox.Resolver{
		MarkerPath: marker,
		HomeDir:    func() (string, error) { return home, nil },
		ConfigHome: func() string { return filepath.Join(root, "config") },
	}
	dir := filepath.Join(root, "config", "autostart")
	if sandboxed {
		dir = filepath.Join(home, ".config", "autostart")
	}

	backend := NewDesktopFileBackend(DesktopOptions{
		Command:       "vorta",
		AppID:         "com.borgbase.Vorta",
		DaemonizeFlag: "--daemonize",
		Runner:        "flatpak",
		FileName:      "vorta.desktop",
		Template:      func() ([]byte, error) { return []byte(template), nil },
		Resolver:      resolver,
	}, zaptest.NewLogger(t))

	return &desktopFixture{backend: backend, root: root, marker: marker, autostartD: dir}
}

func (f *desktopFixture) entryPath() string {
	return filepath.Join(f.autostartD, "vorta.desktop")
}

func (f *desktopFixture) read(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.entryPath())
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestDesktopEnable_Unsandboxed(t *testing.T) {
	f := newDesktopFixture(t, false, testTemplate)

	if err := f.backend.Enable(); err != nil {
		t.Fatal(err)
	}

	got := f.read(t)
	want := "[Desktop Entry]\nName=Vorta\nExec=vorta --daemonize\nType=Application\n" +
		"StartupNotify=false\nX-GNOME-Autostart-enabled=true\nX-GNOME-Autostart-Delay=20\n"
	if got != want {
		t.Errorf("desktop file =\n%s\nwant\n%s", got, want)
	}
}

func TestDesktopEnable_Sandboxed(t *testing.T) {
	f := newDesktopFixture(t, true, testTemplate)

	if err := f.backend.Enable(); err != nil {
		t.Fatal(err)
	}

	got := f.read(t)
	if !strings.Contains(got, "\nExec=flatpak run com.borgbase.Vorta --daemonize\n") {
		t.Errorf("sandboxed Exec line missing:\n%s", got)
	}
	if strings.Contains(got, "Exec=vorta") {
		t.Errorf("unsandboxed command leaked into sandboxed entry:\n%s", got)
	}
}

func TestDesktopEnable_Twice(t *testing.T) {
	f := newDesktopFixture(t, false, testTemplate)

	for i := 0; i < 2; i++ {
		if err := f.backend.Enable(); err != nil {
			t.Fatalf("Enable #%d: %v", i+1, err)
		}
	}

	entries, err := os.ReadDir(f.autostartD)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("autostart dir holds %d files, want 1", len(entries))
	}
	if n := strings.Count(f.read(t), "X-GNOME-Autostart-Delay=20"); n != 1 {
		t.Errorf("delay block appears %d times, want 1", n)
	}
}

func TestDesktopEnable_CreatesDirectory(t *testing.T) {
	f := newDesktopFixture(t, false, testTemplate)
	if _, err := os.Stat(f.autostartD); !os.IsNotExist(err) {
		t.Fatalf("autostart dir exists before Enable: %v", err)
	}
	if err := f.backend.Enable(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(f.entryPath()); err != nil {
		t.Errorf("entry not written: %v", err)
	}
}

func TestDesktopDisable_WhenAbsent(t *testing.T) {
	f := newDesktopFixture(t, false, testTemplate)

	for i := 0; i < 2; i++ {
		if err := f.backend.Disable(); err != nil {
			t.Fatalf("Disable #%d: %v", i+1, err)
		}
	}
	if ok, err := f.backend.IsEnabled(); err != nil || ok {
		t.Errorf("IsEnabled() = %v, %v; want false, nil", ok, err)
	}
}

func TestDesktopRoundTrip(t *testing.T) {
	f := newDesktopFixture(t, false, testTemplate)

	if err := f.backend.Enable(); err != nil {
		t.Fatal(err)
	}
	if ok, err := f.backend.IsEnabled(); err != nil || !ok {
		t.Fatalf("IsEnabled() after Enable = %v, %v", ok, err)
	}
	if err := f.backend.Disable(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(f.entryPath()); !os.IsNotExist(err) {
		t.Errorf("entry still present after Disable: %v", err)
	}
	entries, _ := os.ReadDir(f.autostartD)
	if len(entries) != 0 {
		t.Errorf("leftover files after round trip: %d", len(entries))
	}
}

func TestDesktopEnable_MalformedTemplateKeepsState(t *testing.T) {
	f := newDesktopFixture(t, false, "[Desktop Entry]\nExec=vorta-helper\n")

	err := f.backend.Enable()
	if !errors.Is(err, ErrMalformedTemplate) {
		t.Fatalf("Enable() error = %v, want ErrMalformedTemplate", err)
	}
	if _, err := os.Stat(f.entryPath()); !os.IsNotExist(err) {
		t.Errorf("entry written despite malformed template: %v", err)
	}
}

func TestDesktopEnable_TemplateReadError(t *testing.T) {
	f := newDesktopFixture(t, false, testTemplate)
	f.backend.(*desktopFileBackend).opts.Template = templateSource(filepath.Join(f.root, "missing.desktop"))

	err := f.backend.Enable()
	var rerr *ResourceError
	if !errors.As(err, &rerr) {
		t.Fatalf("Enable() error = %v, want *ResourceError", err)
	}
	if !os.IsNotExist(errors.Unwrap(rerr)) {
		t.Errorf("underlying error = %v, want not-exist", rerr.Err)
	}
}

func TestRenderDesktopEntry(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
		wantErr  bool
	}{
		{
			name:     "basic",
			template: "Exec=app\n",
			want:     "Exec=app --daemonize\n" + startupBlock,
		},
		{
			name:     "no trailing newline",
			template: "[Desktop Entry]\nExec=app",
			want:     "[Desktop Entry]\nExec=app --daemonize\n" + startupBlock,
		},
		{
			name:     "crlf",
			template: "[Desktop Entry]\r\nExec=app\r\n",
			want:     "[Desktop Entry]\nExec=app --daemonize\n" + startupBlock,
		},
		{
			name:     "existing startup keys dropped",
			template: "Exec=app\nStartupNotify=true\nX-GNOME-Autostart-Delay = 5\n",
			want:     "Exec=app --daemonize\n" + startupBlock,
		},
		{
			name:     "similar tokens untouched",
			template: "Exec=app\nTryExec=app\nComment=Exec=app is the command\n",
			want:     "Exec=app --daemonize\nTryExec=app\nComment=Exec=app is the command\n" + startupBlock,
		},
		{
			name:     "field code kept",
			template: "Exec=app %U\n",
			want:     "Exec=app --daemonize %U\n" + startupBlock,
		},
		{
			name:     "prefix only is malformed",
			template: "Exec=application\n",
			wantErr:  true,
		},
		{
			name:     "empty",
			template: "",
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderDesktopEntry(tt.template, "Exec=app", "Exec=app --daemonize")
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedTemplate) {
					t.Errorf("error = %v, want ErrMalformedTemplate", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestEmbeddedTemplateRenders(t *testing.T) {
	if _, err := RenderDesktopEntry(string(assets.DesktopTemplate), "Exec=vorta", "Exec=vorta --daemonize"); err != nil {
		t.Errorf("embedded template: %v", err)
	}
}

func TestExecLine_WithoutDaemonizeFlag(t *testing.T) {
	b := &desktopFileBackend{opts: DesktopOptions{Command: "vorta", Runner: "flatpak", AppID: "com.borgbase.Vorta"}}
	if got := b.execLine(false); got != "Exec=vorta" {
		t.Errorf("execLine(false) = %q", got)
	}
	if got := b.execLine(true); got != "Exec=flatpak run com.borgbase.Vorta" {
		t.Errorf("execLine(true) = %q", got)
	}
}

func TestDesktopQueries_DoNotCreateDirectory(t *testing.T) {
	f := newDesktopFixture(t, false, testTemplate)

	if ok, err := f.backend.IsEnabled(); err != nil || ok {
		t.Fatalf("IsEnabled() = %v, %v; want false, nil", ok, err)
	}
	if err := f.backend.Disable(); err != nil {
		t.Fatalf("Disable() = %v", err)
	}
	if _, err := os.Stat(f.autostartD); !os.IsNotExist(err) {
		t.Errorf("autostart dir created by a query: %v", err)
	}
}

func TestDesktopDisable_UncreatableDirectory(t *testing.T) {
	f := newDesktopFixture(t, false, testTemplate)
	// The config home is a regular file, so the autostart dir can never exist.
	if err := os.WriteFile(filepath.Join(f.root, "config"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := f.backend.Disable(); err != nil {
		t.Errorf("Disable() = %v, want nil when nothing is registered", err)
	}
}

func TestDesktopEnable_KeepsExecArguments(t *testing.T) {
	f := newDesktopFixture(t, true, "[Desktop Entry]\nExec=vorta %U\n")

	if err := f.backend.Enable(); err != nil {
		t.Fatal(err)
	}
	if got := f.read(t); !strings.Contains(got, "\nExec=flatpak run com.borgbase.Vorta --daemonize %U\n") {
		t.Errorf("Exec arguments lost:\n%s", got)
	}
}
