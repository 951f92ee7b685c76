package api

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
)

// responseDownloader streams a finished file to the HTTP client as an attachment.
type responseDownloader struct {
	w       http.ResponseWriter
	written bool
}

func (d *responseDownloader) TriggerDownload(_ context.Context, data []byte, filename, mimeType string) error {
	h := d.w.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", attachment(filename))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	d.w.WriteHeader(http.StatusOK)
	d.written = true
	if _, err := d.w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
