// Package index builds the static icon and category artifacts from a directory
// tree of vector files and loads them back for the browser.
package index

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/JakeFAU/iconshelf/internal/icon"
)

// DefaultExtension is the file extension indexed when none is configured.
const DefaultExtension = ".svg"

// Config controls where the builder reads and writes.
type Config struct {
	SourceDir      string
	IconsFile      string
	CategoriesFile string
	Extension      string
}

// Index is the in-memory result of a build.
type Index struct {
	Icons      []icon.Record
	Categories []string
}

// Builder scans the source tree and persists the artifacts.
type Builder struct {
	fs     afero.Fs
	cfg    Config
	logger *zap.Logger
}

// NewBuilder constructs a Builder over fs.
func NewBuilder(fs afero.Fs, cfg Config, logger *zap.Logger) *Builder {
	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{fs: fs, cfg: cfg, logger: logger}
}

// Run scans, sorts, and writes both artifacts. Nothing is written when the scan
// fails.
func (b *Builder) Run(ctx context.Context) (Index, error) {
	b.logger.Info("scanning icons directory", zap.String("dir", b.cfg.SourceDir))
	idx, err := Build(ctx, b.fs, b.cfg.SourceDir, b.cfg.Extension)
	if err != nil {
		return Index{}, err
	}
	b.logger.Info("icons found", zap.Int("count", len(idx.Icons)), zap.Int("categories", len(idx.Categories)))

	if err := Write(b.fs, idx, b.cfg.IconsFile, b.cfg.CategoriesFile); err != nil {
		return Index{}, err
	}
	b.logger.Info("icon index written",
		zap.String("icons_file", b.cfg.IconsFile),
		zap.String("categories_file", b.cfg.CategoriesFile),
	)
	return idx, nil
}

// Build scans root and returns the sorted records and category set.
func Build(ctx context.Context, fs afero.Fs, root, ext string) (Index, error) {
	records, err := scanDir(ctx, fs, root, "", ext, nil)
	if err != nil {
		return Index{}, err
	}
	Sort(records)
	return Index{Icons: records, Categories: Categories(records)}, nil
}

// Scan walks root depth-first and returns one record per file ending in ext.
func Scan(ctx context.Context, fs afero.Fs, root, ext string) ([]icon.Record, error) {
	return scanDir(ctx, fs, root, "", ext, nil)
}

// scanDir appends the records under dir to acc. Files take the name of their
// immediate parent directory as category; root-level files get category.
func scanDir(
	ctx context.Context,
	fs afero.Fs,
	dir, category, ext string,
	acc []icon.Record,
) ([]icon.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &icon.ScanError{Path: dir, Err: err}
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, &icon.ScanError{Path: dir, Err: err}
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			acc, err = scanDir(ctx, fs, filepath.Join(dir, name), name, ext, acc)
			if err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasSuffix(name, ext) {
			acc = append(acc, icon.NewRecord(category, name))
		}
	}
	return acc, nil
}

// Sort orders records by name using case-insensitive English collation. Equal
// names keep their scan order.
func Sort(records []icon.Record) {
	c := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(records, func(i, j int) bool {
		return c.CompareString(records[i].Name, records[j].Name) < 0
	})
}

// Categories returns the deduplicated, sorted category set.
func Categories(records []icon.Record) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0)
	for _, rec := range records {
		if _, ok := seen[rec.Category]; ok {
			continue
		}
		seen[rec.Category] = struct{}{}
		out = append(out, rec.Category)
	}
	slices.Sort(out)
	return out
}

func wrapPath(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w", op, path, err)
}
