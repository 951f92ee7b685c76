package export

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/status"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatSVG},
		{in: "svg", want: FormatSVG},
		{in: " PNG ", want: FormatPNG},
		{in: "gif", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestSingleExportSVG(t *testing.T) {
	t.Parallel()

	rec := icon.NewRecord("compute", "10021-icon-service-Virtual-Machines.svg")
	notifier := &recordingNotifier{}
	exporter := NewSingle(newFakeFetcher(), notifier, SingleConfig{}, nil)
	dl := &captureDownloader{}

	require.NoError(t, exporter.Export(context.Background(), rec, Options{}, dl))
	require.Len(t, dl.files, 1)
	require.Equal(t, "Virtual-Machines.svg", dl.files[0].filename)
	require.Equal(t, "image/svg+xml", dl.files[0].mime)
	require.Equal(t, squareSVG, string(dl.files[0].data))
	require.Equal(t, recordedPost{kind: status.KindSuccess, text: "Downloaded: Virtual Machines.svg"}, notifier.last())
}

func TestSingleExportPNG(t *testing.T) {
	t.Parallel()

	rec := icon.NewRecord("compute", "10021-icon-service-Virtual-Machines.svg")
	notifier := &recordingNotifier{}
	exporter := NewSingle(newFakeFetcher(), notifier, SingleConfig{}, nil)
	dl := &captureDownloader{}

	require.NoError(t, exporter.Export(context.Background(), rec, Options{Format: FormatPNG}, dl))
	require.Equal(t, "Virtual-Machines.png", dl.files[0].filename)
	require.Equal(t, "image/png", dl.files[0].mime)

	img, err := png.Decode(bytes.NewReader(dl.files[0].data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 150, 150), img.Bounds())
	require.Equal(t, "Downloaded: Virtual Machines.png", notifier.last().text)
}

func TestSingleExportFetchFailure(t *testing.T) {
	t.Parallel()

	rec := icon.NewRecord("compute", "1-icon-service-Missing.svg")
	fetcher := newFakeFetcher()
	fetcher.fail[rec.RelativePath] = true
	notifier := &recordingNotifier{}
	exporter := NewSingle(fetcher, notifier, SingleConfig{}, nil)
	dl := &captureDownloader{}

	err := exporter.Export(context.Background(), rec, Options{Format: FormatPNG}, dl)
	var fetchErr *icon.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, 404, fetchErr.StatusCode)
	require.Empty(t, dl.files)
	require.Equal(t, recordedPost{kind: status.KindFailure, text: "Download failed"}, notifier.last())
}

func TestSingleExportDownloadFailure(t *testing.T) {
	t.Parallel()

	rec := icon.NewRecord("compute", "1-icon-service-Disk.svg")
	exporter := NewSingle(newFakeFetcher(), nil, SingleConfig{}, nil)

	err := exporter.Export(context.Background(), rec, Options{}, &captureDownloader{err: errDownload})
	var exportErr *icon.ExportError
	require.ErrorAs(t, err, &exportErr)
	require.Equal(t, "download", exportErr.Op)
}
