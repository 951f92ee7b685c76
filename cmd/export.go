package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/export"
	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/id/uuid"
	"github.com/JakeFAU/iconshelf/internal/index"
	"github.com/JakeFAU/iconshelf/internal/server"
	"github.com/JakeFAU/iconshelf/internal/status"
	"github.com/JakeFAU/iconshelf/internal/storage"
	"github.com/JakeFAU/iconshelf/internal/storage/local"
)

const formatDrawIO = "drawio"

type exportOptions struct {
	format      string
	query       string
	category    string
	iconID      string
	transparent bool
	outDir      string
}

// newExportCmd creates the 'export' subcommand. Without --out files go to the
// configured artifact store under storage.prefix.
func newExportCmd() *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one icon or a draw.io library of the matching icons",
		Example: `  iconshelf export --format drawio --category compute --out ./dist
  iconshelf export --format png --id 10021-icon-service-Virtual-Machine --transparent`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runExport(cmd.Context(), appInstance, opts, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.format, "format", formatDrawIO, "drawio, svg or png")
	flags.StringVarP(&opts.query, "query", "q", "", "search text applied before a draw.io export")
	flags.StringVar(&opts.category, "category", "", "category applied before a draw.io export")
	flags.StringVar(&opts.iconID, "id", "", "icon id for svg/png exports")
	flags.BoolVar(&opts.transparent, "transparent", false, "skip the white PNG background")
	flags.StringVar(&opts.outDir, "out", "", "write into this directory instead of the artifact store")
	return cmd
}

// printNotifier shows status messages on the terminal.
type printNotifier struct {
	w io.Writer
}

func (p printNotifier) Post(_ status.Kind, text string) {
	fmt.Fprintln(p.w, text)
}

func runExport(ctx context.Context, appInstance *App, opts exportOptions, out io.Writer) error {
	cfg := appInstance.Config
	logger := appInstance.Logger.Named("export")
	fsys := afero.NewOsFs()

	catalog := index.NewCatalog(fsys, cfg.Index.IconsFile, cfg.Index.CategoriesFile, logger)
	if err := catalog.Reload(); err != nil {
		return fmt.Errorf("load icon index (run `iconshelf index` first): %w", err)
	}
	fetcher, err := server.NewFetcher(cfg, fsys, logger)
	if err != nil {
		return err
	}
	dl, closeStore, err := openDownloader(ctx, appInstance, opts.outDir)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier := printNotifier{w: out}
	lib := catalog.Library()
	format := strings.ToLower(strings.TrimSpace(opts.format))
	if format == formatDrawIO {
		return exportLibrary(ctx, appInstance, lib, opts, fetcher, notifier, dl, out)
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	if opts.iconID == "" {
		return errors.New("--id is required for svg and png exports")
	}
	rec, ok := lib.Lookup(opts.iconID)
	if !ok {
		return fmt.Errorf("icon %q: %w", opts.iconID, icon.ErrNotFound)
	}
	single := export.NewSingle(fetcher, notifier, export.SingleConfig{PNGSize: cfg.Export.PNGSize}, logger)
	return single.Export(ctx, rec, export.Options{Format: f, TransparentBackground: opts.transparent}, dl)
}

func exportLibrary(
	ctx context.Context,
	appInstance *App,
	lib icon.Library,
	opts exportOptions,
	fetcher icon.AssetFetcher,
	notifier status.Notifier,
	dl export.Downloader,
	out io.Writer,
) error {
	cfg := appInstance.Config
	logger := appInstance.Logger.Named("export")

	hub, err := server.NewProgressHub(cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		return err
	}
	defer func() {
		hubCtx, cancel := context.WithTimeout(context.Background(), cfg.Progress.ShutdownTimeout())
		defer cancel()
		if err := hub.Close(hubCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	id, err := uuid.NewUUIDGenerator().NewID()
	if err != nil {
		return fmt.Errorf("export id: %w", err)
	}
	drawio := export.NewDrawIO(fetcher, hub, notifier, export.DrawIOConfig{
		BatchSize:  cfg.Export.BatchSize,
		BatchPause: cfg.Export.BatchPause(),
		FileName:   cfg.Export.FileName,
	}, logger)
	visible := icon.Filter(lib.Icons, opts.query, opts.category)
	if _, err := drawio.Export(ctx, id, visible, dl, nil); err != nil {
		return err
	}
	if bd, ok := dl.(*export.BlobDownloader); ok {
		logger.Info("library stored", zap.String("uri", bd.URI()))
		fmt.Fprintf(out, "Saved to %s\n", bd.URI())
	}
	return nil
}

// openDownloader writes into outDir when set and into the configured
// artifact store otherwise. The memory backend does not outlive the process,
// so it is replaced by a local store under storage.base_dir.
func openDownloader(ctx context.Context, appInstance *App, outDir string) (export.Downloader, func(), error) {
	cfg := appInstance.Config
	logger := appInstance.Logger.Named("storage")
	backend := strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if outDir == "" && (backend == "" || backend == storage.BackendMemory) {
		if cfg.Storage.BaseDir == "" {
			return nil, nil, errors.New("pass --out or set storage.base_dir: the memory store is discarded on exit")
		}
		logger.Info("memory store requested, writing to storage.base_dir instead",
			zap.String("base_dir", cfg.Storage.BaseDir))
		backend = storage.BackendLocal
	}
	if outDir != "" {
		store, err := local.New(afero.NewOsFs(), local.Config{BaseDir: outDir})
		if err != nil {
			return nil, nil, fmt.Errorf("open output dir: %w", err)
		}
		return &export.BlobDownloader{Store: store, Logger: logger}, func() {}, nil
	}
	store, closer, err := storage.Open(ctx, storage.Config{
		Backend:   backend,
		BaseDir:   cfg.Storage.BaseDir,
		GCSBucket: cfg.Storage.GCSBucket,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := closer.Close(); err != nil {
			logger.Warn("artifact store close failed", zap.Error(err))
		}
	}
	return &export.BlobDownloader{Store: store, Prefix: cfg.Storage.Prefix, Logger: logger}, closeStore, nil
}
