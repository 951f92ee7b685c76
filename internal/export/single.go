package export

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/status"
)

// Format selects the single-icon download format.
type Format string

// Supported formats.
const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat accepts "svg" or "png" (case-insensitive); empty means svg.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatSVG:
		return FormatSVG, nil
	case FormatPNG:
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Options tune a single-icon export.
type Options struct {
	Format Format
	// TransparentBackground skips the white fill; it only applies to PNG.
	TransparentBackground bool
}

// SingleConfig controls the single-icon exporter.
type SingleConfig struct {
	PNGSize int
}

// Single exports one icon at a time.
type Single struct {
	fetcher  icon.AssetFetcher
	notifier status.Notifier
	cfg      SingleConfig
	logger   *zap.Logger
}

// NewSingle builds a Single exporter. notifier may be nil.
func NewSingle(fetcher icon.AssetFetcher, notifier status.Notifier, cfg SingleConfig, logger *zap.Logger) *Single {
	if cfg.PNGSize <= 0 {
		cfg.PNGSize = DefaultPNGSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Single{fetcher: fetcher, notifier: notifier, cfg: cfg, logger: logger}
}

// FileName returns the download name of rec in format f.
func FileName(rec icon.Record, f Format) string {
	return icon.SanitizeFileName(rec.Name) + "." + string(f)
}

// Export fetches rec, converts it when needed, and hands the file to dl. The
// outcome is posted to the status board either way.
func (s *Single) Export(ctx context.Context, rec icon.Record, opts Options, dl Downloader) error {
	if err := s.export(ctx, rec, opts, dl); err != nil {
		s.logger.Error("icon download failed", zap.String("icon", rec.ID), zap.Error(err))
		s.post(status.KindFailure, "Download failed")
		return err
	}
	s.post(status.KindSuccess, fmt.Sprintf("Downloaded: %s.%s", rec.Name, s.format(opts)))
	return nil
}

func (s *Single) export(ctx context.Context, rec icon.Record, opts Options, dl Downloader) error {
	format := s.format(opts)
	svg, err := s.fetcher.FetchAsset(ctx, rec)
	if err != nil {
		return asFetchError(rec, err)
	}

	data, mime := svg, MIMESVG
	if format == FormatPNG {
		data, err = Rasterize(svg, s.cfg.PNGSize, opts.TransparentBackground)
		if err != nil {
			return &icon.ExportError{Op: "rasterize", Err: err}
		}
		mime = MIMEPNG
	}
	if err := dl.TriggerDownload(ctx, data, FileName(rec, format), mime); err != nil {
		return &icon.ExportError{Op: "download", Err: err}
	}
	return nil
}

// asFetchError guarantees fetch failures surface as *icon.FetchError.
func asFetchError(rec icon.Record, err error) error {
	var fetchErr *icon.FetchError
	if errors.As(err, &fetchErr) {
		return err
	}
	return &icon.FetchError{Path: rec.RelativePath, Err: err}
}

func (s *Single) format(opts Options) Format {
	if opts.Format == "" {
		return FormatSVG
	}
	return opts.Format
}

func (s *Single) post(kind status.Kind, text string) {
	if s.notifier != nil {
		s.notifier.Post(kind, text)
	}
}
