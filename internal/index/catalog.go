package index

import (
	"sync/atomic"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/icon"
)

// Catalog serves the currently loaded artifacts and can swap in a freshly
// built pair without interrupting readers.
type Catalog struct {
	fs             afero.Fs
	iconsPath      string
	categoriesPath string
	logger         *zap.Logger
	current        atomic.Pointer[icon.Library]
}

// NewCatalog builds an empty Catalog backed by the given artifact paths.
func NewCatalog(fs afero.Fs, iconsPath, categoriesPath string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{fs: fs, iconsPath: iconsPath, categoriesPath: categoriesPath, logger: logger}
	c.current.Store(&icon.Library{Icons: []icon.Record{}, Categories: []string{}})
	return c
}

// StaticCatalog wraps an in-memory library; Reload is a no-op.
func StaticCatalog(lib icon.Library) *Catalog {
	c := &Catalog{logger: zap.NewNop()}
	c.current.Store(&lib)
	return c
}

// Reload reads both artifacts and publishes them. On error the previous
// library stays in place.
func (c *Catalog) Reload() error {
	if c.fs == nil {
		return nil
	}
	lib, err := Load(c.fs, c.iconsPath, c.categoriesPath)
	if err != nil {
		return err
	}
	c.current.Store(&lib)
	c.logger.Info("catalog loaded",
		zap.Int("icons", len(lib.Icons)),
		zap.Int("categories", len(lib.Categories)),
	)
	return nil
}

// Library returns the current snapshot.
func (c *Catalog) Library() icon.Library {
	return *c.current.Load()
}
