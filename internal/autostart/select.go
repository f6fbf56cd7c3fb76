package autostart

import (
	"os"

	"go.uber.org/zap"

	"github.com/paolobenve/vorta/assets"
	"github.com/paolobenve/vorta/internal/config"
	"github.com/paolobenve/vorta/internal/loginitems"
	"github.com/paolobenve/vorta/internal/platform"
	"github.com/paolobenve/vorta/internal/sandbox"
)

// New returns a Manager for the running platform.
func New(cfg *config.Config, logger *zap.Logger) *Manager {
	return NewForFamily(platform.Current(), cfg, logger)
}

// NewForFamily returns a Manager whose backend is chosen by family.
func NewForFamily(family platform.Family, cfg *config.Config, logger *zap.Logger) *Manager {
	logger = logger.Named("autostart")

	var backend Backend
	switch family {
	case platform.Darwin:
		backend = NewLoginItemsBackend(
			loginitems.NewSystemEvents(nil),
			BundleResolver(cfg.App.BundlePath),
			logger)
	case platform.Linux:
		backend = NewDesktopFileBackend(DesktopOptions{
			Command:       cfg.App.Command,
			AppID:         cfg.App.ID,
			DaemonizeFlag: cfg.App.DaemonizeFlag,
			Runner:        cfg.Sandbox.Runner,
			FileName:      cfg.Desktop.FileName,
			Template:      templateSource(cfg.Desktop.TemplatePath),
			Resolver:      sandbox.NewResolver(cfg.Sandbox.MarkerPath),
		}, logger)
	}

	if backend != nil {
		logger.Debug("Selected autostart backend",
			zap.String("family", family.String()),
			zap.String("backend", backend.Name()))
	}
	return NewManager(backend, logger)
}

// templateSource reads the template at path, or the embedded one when path is empty.
func templateSource(path string) func() ([]byte, error) {
	if path == "" {
		return func() ([]byte, error) { return assets.DesktopTemplate, nil }
	}
	return func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ResourceError{Op: "reading desktop template", Path: path, Err: err}
		}
		return data, nil
	}
}
