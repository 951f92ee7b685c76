// Package localfetcher reads icon assets from a filesystem tree laid out as
// <root>/<category>/<fileName>, with uncategorized icons directly under root.
package localfetcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/metrics"
)

const metricsSource = "local"

// Fetcher implements icon.AssetFetcher over an afero filesystem.
type Fetcher struct {
	fs   afero.Fs
	root string
}

// New returns a Fetcher rooted at root, the directory holding one folder per
// category.
func New(fsys afero.Fs, root string) *Fetcher {
	return &Fetcher{fs: fsys, root: filepath.Clean(root)}
}

// Path returns where rec lives on disk. An empty category means rec sits at
// the root of the tree.
func (f *Fetcher) Path(rec icon.Record) (string, error) {
	if rec.FileName == "" {
		return "", errors.New("record is missing a file name")
	}
	parts := []string{rec.FileName}
	if rec.Category != "" {
		parts = []string{rec.Category, rec.FileName}
	}
	for _, part := range parts {
		if part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid path segment %q", part)
		}
	}
	return filepath.Join(append([]string{f.root}, parts...)...), nil
}

// FetchAsset reads the SVG bytes for rec.
func (f *Fetcher) FetchAsset(ctx context.Context, rec icon.Record) ([]byte, error) {
	start := time.Now()
	data, err := f.read(ctx, rec)
	if err != nil {
		metrics.ObserveFetch(metricsSource, metrics.OutcomeError, 0, time.Since(start))
		return nil, err
	}
	metrics.ObserveFetch(metricsSource, metrics.OutcomeOK, len(data), time.Since(start))
	return data, nil
}

func (f *Fetcher) read(ctx context.Context, rec icon.Record) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &icon.FetchError{Path: rec.RelativePath, Err: err}
	}
	p, err := f.Path(rec)
	if err != nil {
		return nil, &icon.FetchError{Path: rec.RelativePath, Err: err}
	}
	data, err := afero.ReadFile(f.fs, p)
	if err != nil {
		fetchErr := &icon.FetchError{Path: rec.RelativePath, Err: err}
		if errors.Is(err, fs.ErrNotExist) {
			fetchErr.Err = fmt.Errorf("%w: %w", icon.ErrNotFound, err)
		}
		return nil, fetchErr
	}
	return data, nil
}
