package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/icon"
)

// MIME types of the produced files.
const (
	MIMESVG = "image/svg+xml"
	MIMEPNG = "image/png"
	MIMEXML = "application/xml"
)

// Downloader delivers a finished file to the user.
type Downloader interface {
	TriggerDownload(ctx context.Context, data []byte, filename, mime string) error
}

// DownloaderFunc adapts a function to Downloader.
type DownloaderFunc func(ctx context.Context, data []byte, filename, mime string) error

// TriggerDownload calls f.
func (f DownloaderFunc) TriggerDownload(ctx context.Context, data []byte, filename, mime string) error {
	return f(ctx, data, filename, mime)
}

// BlobDownloader delivers files into a blob store under Prefix.
type BlobDownloader struct {
	Store  icon.BlobStore
	Prefix string
	Logger *zap.Logger

	lastURI string
}

// TriggerDownload writes data to <Prefix>/<filename>.
func (d *BlobDownloader) TriggerDownload(ctx context.Context, data []byte, filename, mime string) error {
	if d.Store == nil {
		return fmt.Errorf("blob downloader: no store configured")
	}
	key := ObjectPath(d.Prefix, filename)
	uri, err := d.Store.PutObject(ctx, key, mime, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	d.lastURI = uri
	if d.Logger != nil {
		d.Logger.Info("download stored", zap.String("uri", uri), zap.Int("bytes", len(data)))
	}
	return nil
}

// URI returns the location of the last stored file.
func (d *BlobDownloader) URI() string {
	return d.lastURI
}

// ObjectPath joins a blob prefix and a file name.
func ObjectPath(prefix, filename string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filename
	}
	return path.Join(prefix, filename)
}
