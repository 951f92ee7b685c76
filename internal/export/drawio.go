package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/progress"
	"github.com/JakeFAU/iconshelf/internal/status"
)

// Bulk export defaults.
const (
	DefaultBatchSize    = 50
	DefaultLibraryName  = "azure-icons-drawio.xml"
	FailureMessage      = "Export failed - please try again"
	preparingMessage    = "Preparing Draw.io export..."
	libraryOpenTag      = "<mxlibrary>"
	libraryCloseTag     = "</mxlibrary>"
	svgDataURIPrefix    = "data:image/svg+xml;base64,"
	fixedAspect         = "fixed"
	maxFailureNoteBytes = 256
)

// Item is one entry of a draw.io library.
type Item struct {
	Data   string `json:"data"`
	W      int    `json:"w"`
	H      int    `json:"h"`
	Title  string `json:"title"`
	Aspect string `json:"aspect"`
}

// Progress is reported after each pipeline step.
type Progress struct {
	Message    string
	IsComplete bool
	// IconCount is set on the final report only.
	IconCount int
	Processed int
	Total     int
}

// ProgressFunc receives Progress reports on the calling goroutine.
type ProgressFunc func(Progress)

// DrawIOConfig tunes the bulk pipeline.
type DrawIOConfig struct {
	BatchSize int
	// BatchPause is slept between batches; zero or negative disables it.
	BatchPause time.Duration
	FileName   string
}

// Result summarizes a finished bulk export.
type Result struct {
	ExportID  uuid.UUID
	IconCount int
	Processed int
	Failed    int
	FileName  string
	Size      int
}

// DrawIO builds draw.io libraries from icon lists.
type DrawIO struct {
	fetcher  icon.AssetFetcher
	emitter  progress.Emitter
	notifier status.Notifier
	cfg      DrawIOConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewDrawIO builds the exporter. emitter and notifier may be nil.
func NewDrawIO(
	fetcher icon.AssetFetcher,
	emitter progress.Emitter,
	notifier status.Notifier,
	cfg DrawIOConfig,
	logger *zap.Logger,
) *DrawIO {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FileName == "" {
		cfg.FileName = DefaultLibraryName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DrawIO{
		fetcher:  fetcher,
		emitter:  emitter,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// FileName is the name the library is delivered under.
func (d *DrawIO) FileName() string {
	return d.cfg.FileName
}

// Export fetches every record in batches, embeds the survivors into a library
// and hands it to dl. Icons that cannot be fetched are dropped. Pipeline-level
// failures are returned as *icon.ExportError.
func (d *DrawIO) Export(
	ctx context.Context,
	exportID uuid.UUID,
	records []icon.Record,
	dl Downloader,
	onProgress ProgressFunc,
) (Result, error) {
	if exportID == uuid.Nil {
		exportID = uuid.New()
	}
	run := &exportRun{
		DrawIO:     d,
		id:         exportID,
		total:      len(records),
		started:    d.now(),
		onProgress: onProgress,
		logger:     d.logger.With(zap.Stringer("export_id", exportID)),
	}
	res, err := run.execute(ctx, records, dl)
	if err != nil {
		run.logger.Error("export failed", zap.Error(err))
		run.emit(progress.StageExportError, truncate(err.Error()))
		run.report(Progress{
			Message:    FailureMessage,
			IsComplete: true,
			Processed:  run.processed,
			Total:      run.total,
		}, status.KindFailure)
		return res, err
	}
	return res, nil
}

type exportRun struct {
	*DrawIO
	id         uuid.UUID
	total      int
	processed  int
	succeeded  int
	failed     int
	started    time.Time
	onProgress ProgressFunc
	logger     *zap.Logger
}

func (r *exportRun) execute(ctx context.Context, records []icon.Record, dl Downloader) (Result, error) {
	r.emit(progress.StageExportStart, "")
	r.report(Progress{Message: preparingMessage, Total: r.total}, status.KindProgress)

	items := make([]Item, 0, len(records))
	for start := 0; start < len(records); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(records))
		items = append(items, r.runBatch(ctx, records[start:end])...)
		if err := ctx.Err(); err != nil {
			return r.result(), &icon.ExportError{Op: "fetch", Err: err}
		}

		r.processed = end
		r.emit(progress.StageBatchDone, "")
		r.report(Progress{
			Message:   fmt.Sprintf("Processing icons... %d/%d", r.processed, r.total),
			Processed: r.processed,
			Total:     r.total,
		}, status.KindProgress)

		if end < len(records) {
			if err := r.pause(ctx); err != nil {
				return r.result(), &icon.ExportError{Op: "fetch", Err: err}
			}
		}
	}

	doc, err := MarshalLibrary(items)
	if err != nil {
		return r.result(), &icon.ExportError{Op: "serialize", Err: err}
	}
	if err := dl.TriggerDownload(ctx, doc, r.cfg.FileName, MIMEXML); err != nil {
		return r.result(), &icon.ExportError{Op: "download", Err: err}
	}

	res := r.result()
	res.Size = len(doc)
	r.emit(progress.StageExportDone, "")
	r.report(Progress{
		Message:    CompleteMessage(res.IconCount),
		IsComplete: true,
		IconCount:  res.IconCount,
		Processed:  r.processed,
		Total:      r.total,
	}, status.KindComplete)
	r.logger.Info("export finished",
		zap.Int("icons", res.IconCount),
		zap.Int("failed", res.Failed),
		zap.Int("bytes", res.Size),
	)
	return res, nil
}

// runBatch fetches batch concurrently and returns the surviving items in input
// order. Each goroutine writes only its own slot.
func (r *exportRun) runBatch(ctx context.Context, batch []icon.Record) []Item {
	slots := make([]*Item, len(batch))
	var g errgroup.Group
	g.SetLimit(r.cfg.BatchSize)
	for i, rec := range batch {
		g.Go(func() error {
			item, err := r.buildItem(ctx, rec)
			if err != nil {
				r.logger.Warn("icon dropped from export", zap.String("file", rec.FileName), zap.Error(err))
				return nil
			}
			slots[i] = &item
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Item, 0, len(batch))
	for i, slot := range slots {
		if slot == nil {
			r.failed++
			r.emit(progress.StageItemFailed, truncate(fmt.Sprintf("dropped %s", batch[i].FileName)))
			continue
		}
		out = append(out, *slot)
		r.succeeded++
	}
	return out
}

func (r *exportRun) buildItem(ctx context.Context, rec icon.Record) (Item, error) {
	svg, err := r.fetcher.FetchAsset(ctx, rec)
	if err != nil {
		return Item{}, asFetchError(rec, err)
	}
	w, h := ParseDimensions(svg)
	return Item{
		Data:   svgDataURIPrefix + base64.StdEncoding.EncodeToString(svg),
		W:      w,
		H:      h,
		Title:  rec.Name,
		Aspect: fixedAspect,
	}, nil
}

func (r *exportRun) pause(ctx context.Context) error {
	if r.cfg.BatchPause <= 0 {
		return nil
	}
	timer := time.NewTimer(r.cfg.BatchPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *exportRun) result() Result {
	return Result{
		ExportID:  r.id,
		IconCount: r.succeeded,
		Processed: r.processed,
		Failed:    r.failed,
		FileName:  r.cfg.FileName,
	}
}

func (r *exportRun) report(p Progress, kind status.Kind) {
	r.post(kind, p.Message)
	if r.onProgress != nil {
		r.onProgress(p)
	}
}

func (r *exportRun) emit(stage progress.Stage, note string) {
	if r.emitter == nil {
		return
	}
	evt := progress.Event{
		ExportID:  progress.UUIDToBytes(r.id),
		TS:        r.now().UTC(),
		Stage:     stage,
		Processed: r.processed,
		Total:     r.total,
		Succeeded: r.succeeded,
		Failed:    r.failed,
		Note:      note,
	}
	if stage == progress.StageExportDone || stage == progress.StageExportError {
		evt.Dur = r.now().Sub(r.started)
	}
	r.emitter.Emit(evt)
}

func (d *DrawIO) post(kind status.Kind, text string) {
	if d.notifier != nil {
		d.notifier.Post(kind, text)
	}
}

// CompleteMessage is the final line reported for a library of n icons.
func CompleteMessage(n int) string {
	return fmt.Sprintf("Draw.io library exported! (%d icons)", n)
}

// MarshalLibrary renders items as a draw.io library document.
func MarshalLibrary(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return nil, fmt.Errorf("encode library: %w", err)
	}
	doc := make([]byte, 0, body.Len()+len(libraryOpenTag)+len(libraryCloseTag))
	doc = append(doc, libraryOpenTag...)
	doc = append(doc, bytes.TrimRight(body.Bytes(), "\n")...)
	doc = append(doc, libraryCloseTag...)
	return doc, nil
}

func truncate(s string) string {
	if len(s) <= maxFailureNoteBytes {
		return s
	}
	return s[:maxFailureNoteBytes]
}
