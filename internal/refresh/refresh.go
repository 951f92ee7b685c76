// Package refresh replaces the on-disk icon tree with the latest published
// bundle and rebuilds the index when the contents changed.
package refresh

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/iconshelf/internal/fetcher/colly"
	"github.com/JakeFAU/iconshelf/internal/hash/sha256"
	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/index"
)

// Defaults applied by New.
const (
	DefaultMinIconCount = 100
	DefaultFolderHint   = "Azure"
	backupSuffix        = "_backup"
)

// Getter downloads a URL; *collyfetcher.Fetcher satisfies it.
type Getter interface {
	FetchURL(ctx context.Context, rawURL string) (collyfetcher.Response, error)
}

// Indexer regenerates the artifacts; *index.Builder satisfies it.
type Indexer interface {
	Run(ctx context.Context) (index.Index, error)
}

// Config controls a refresh run.
type Config struct {
	DownloadURL string
	// TargetDir is the live icon tree.
	TargetDir string
	// WorkDir holds the scratch space; empty uses the parent of TargetDir so
	// the final rename stays on one filesystem.
	WorkDir      string
	MinIconCount int
	Extension    string
	// FolderHint selects the extracted top-level directory.
	FolderHint string
}

// Result summarizes a run.
type Result struct {
	ChangesDetected bool
	CurrentCount    int
	NewCount        int
}

// Updater performs refresh runs.
type Updater struct {
	fs      afero.Fs
	get     Getter
	indexer Indexer
	hasher  icon.Hasher
	cfg     Config
	logger  *zap.Logger
}

// New builds an Updater. indexer may be nil to skip reindexing.
func New(fs afero.Fs, get Getter, indexer Indexer, cfg Config, logger *zap.Logger) (*Updater, error) {
	if cfg.DownloadURL == "" {
		return nil, errors.New("refresh: download url is required")
	}
	if cfg.TargetDir == "" {
		return nil, errors.New("refresh: target dir is required")
	}
	if cfg.MinIconCount <= 0 {
		cfg.MinIconCount = DefaultMinIconCount
	}
	if cfg.Extension == "" {
		cfg.Extension = index.DefaultExtension
	}
	if cfg.FolderHint == "" {
		cfg.FolderHint = DefaultFolderHint
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Dir(filepath.Clean(cfg.TargetDir))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{
		fs:      fs,
		get:     get,
		indexer: indexer,
		hasher:  sha256.New(),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Run downloads, validates and compares the bundle, swapping it in only when
// it differs from the current tree. Scratch and backup directories are
// removed on every exit path.
func (u *Updater) Run(ctx context.Context) (Result, error) {
	u.logger.Info("starting icon refresh", zap.String("url", u.cfg.DownloadURL))

	if err := u.fs.MkdirAll(u.cfg.WorkDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create work dir: %w", err)
	}
	work, err := afero.TempDir(u.fs, u.cfg.WorkDir, ".iconshelf-refresh-")
	if err != nil {
		return Result{}, fmt.Errorf("create scratch dir: %w", err)
	}
	backup := filepath.Clean(u.cfg.TargetDir) + backupSuffix
	defer u.cleanup(work, backup)

	bundle, err := u.download(ctx)
	if err != nil {
		return Result{}, err
	}
	extracted, err := u.extract(bundle, work)
	if err != nil {
		return Result{}, err
	}

	res, err := u.compare(extracted)
	if err != nil {
		return Result{}, err
	}
	if !res.ChangesDetected {
		u.logger.Info("icons are up to date", zap.Int("count", res.CurrentCount))
		return res, nil
	}

	if err := u.swap(extracted, backup); err != nil {
		return Result{}, err
	}
	if u.indexer != nil {
		if _, err := u.indexer.Run(ctx); err != nil {
			return Result{}, fmt.Errorf("regenerate index: %w", err)
		}
	}
	u.logger.Info("icon refresh completed",
		zap.Int("previous", res.CurrentCount),
		zap.Int("current", res.NewCount),
	)
	return res, nil
}

func (u *Updater) download(ctx context.Context) ([]byte, error) {
	resp, err := u.get.FetchURL(ctx, u.cfg.DownloadURL)
	if err != nil {
		return nil, fmt.Errorf("download bundle: %w", err)
	}
	if len(resp.Body) == 0 {
		return nil, errors.New("download bundle: empty response")
	}
	u.logger.Info("bundle downloaded", zap.Int("kb", len(resp.Body)/1024), zap.Duration("took", resp.Duration))
	return resp.Body, nil
}

// extract unpacks bundle under work and returns the selected top-level
// directory after checking it holds enough icons.
func (u *Updater) extract(bundle []byte, work string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	if err != nil {
		return "", fmt.Errorf("open bundle: %w", err)
	}
	for _, f := range zr.File {
		if err := u.extractFile(f, work); err != nil {
			return "", err
		}
	}

	entries, err := afero.ReadDir(u.fs, work)
	if err != nil {
		return "", fmt.Errorf("read scratch dir: %w", err)
	}
	var folder string
	for _, e := range entries {
		if e.IsDir() && strings.Contains(e.Name(), u.cfg.FolderHint) {
			folder = filepath.Join(work, e.Name())
			break
		}
	}
	if folder == "" {
		return "", fmt.Errorf("no extracted folder matching %q", u.cfg.FolderHint)
	}

	count, err := u.countIcons(folder)
	if err != nil {
		return "", err
	}
	u.logger.Info("bundle extracted", zap.String("folder", filepath.Base(folder)), zap.Int("icons", count))
	if count < u.cfg.MinIconCount {
		return "", fmt.Errorf("extracted folder contains too few icons (%d), expected at least %d",
			count, u.cfg.MinIconCount)
	}
	return folder, nil
}

func (u *Updater) extractFile(f *zip.File, work string) error {
	name := path.Clean(strings.ReplaceAll(f.Name, `\`, "/"))
	if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
		return fmt.Errorf("bundle entry %q escapes the extraction dir", f.Name)
	}
	dst := filepath.Join(work, filepath.FromSlash(name))
	if f.FileInfo().IsDir() {
		return u.fs.MkdirAll(dst, 0o755)
	}
	if err := u.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open bundle entry %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := u.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

func (u *Updater) compare(extracted string) (Result, error) {
	exists, err := afero.DirExists(u.fs, u.cfg.TargetDir)
	if err != nil {
		return Result{}, fmt.Errorf("stat target dir: %w", err)
	}
	current := 0
	if exists {
		if current, err = u.countIcons(u.cfg.TargetDir); err != nil {
			return Result{}, err
		}
	}
	latest, err := u.countIcons(extracted)
	if err != nil {
		return Result{}, err
	}
	res := Result{CurrentCount: current, NewCount: latest}

	switch {
	case !exists:
		u.logger.Info("no existing icon tree, adding", zap.String("target", u.cfg.TargetDir))
		res.ChangesDetected = true
	case current != latest:
		u.logger.Info("icon count changed", zap.Int("from", current), zap.Int("to", latest))
		res.ChangesDetected = true
	default:
		before, err := u.Digest(u.cfg.TargetDir)
		if err != nil {
			return Result{}, err
		}
		after, err := u.Digest(extracted)
		if err != nil {
			return Result{}, err
		}
		res.ChangesDetected = before != after
	}
	return res, nil
}

// swap moves the current tree aside and the extracted one into place,
// restoring the original when the second rename fails.
func (u *Updater) swap(extracted, backup string) error {
	target := u.cfg.TargetDir
	if err := u.fs.RemoveAll(backup); err != nil {
		return fmt.Errorf("clear backup: %w", err)
	}
	hadTarget, err := afero.DirExists(u.fs, target)
	if err != nil {
		return fmt.Errorf("stat target dir: %w", err)
	}
	if hadTarget {
		if err := u.fs.Rename(target, backup); err != nil {
			return fmt.Errorf("back up current icons: %w", err)
		}
	} else if err := u.fs.MkdirAll(filepath.Dir(filepath.Clean(target)), 0o755); err != nil {
		return fmt.Errorf("create target parent: %w", err)
	}
	if err := u.fs.Rename(extracted, target); err != nil {
		if hadTarget {
			if restoreErr := u.fs.Rename(backup, target); restoreErr != nil {
				u.logger.Error("restore icons failed", zap.Error(restoreErr))
			}
		}
		return fmt.Errorf("install new icons: %w", err)
	}
	u.logger.Info("icon tree replaced", zap.String("target", target))
	return nil
}

func (u *Updater) cleanup(dirs ...string) {
	for _, dir := range dirs {
		if err := u.fs.RemoveAll(dir); err != nil {
			u.logger.Warn("cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
	}
}

func (u *Updater) countIcons(root string) (int, error) {
	n := 0
	err := u.walkIcons(root, func(string, string) error {
		n++
		return nil
	})
	return n, err
}

// Digest fingerprints every icon below root as the hash of the sorted
// "<relative path> <file hash>" lines. Missing roots digest to "".
func (u *Updater) Digest(root string) (string, error) {
	exists, err := afero.DirExists(u.fs, root)
	if err != nil || !exists {
		return "", err
	}
	var lines []string
	err = u.walkIcons(root, func(p, rel string) error {
		f, err := u.fs.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		sum, err := u.hasher.HashReader(f)
		if err != nil {
			return fmt.Errorf("hash %s: %w", rel, err)
		}
		lines = append(lines, rel+" "+sum)
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(lines)
	return u.hasher.Hash([]byte(strings.Join(lines, "\n")))
}

func (u *Updater) walkIcons(root string, fn func(p, rel string) error) error {
	err := afero.Walk(u.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(p), u.cfg.Extension) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return fn(p, filepath.ToSlash(rel))
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	return nil
}
