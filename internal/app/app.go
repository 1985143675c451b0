package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"face-gallery/internal/annotate"
	"face-gallery/internal/bitmap"
	"face-gallery/internal/database"
	"face-gallery/internal/decoder"
	"face-gallery/internal/detector"
	"face-gallery/internal/filesystem"
	"face-gallery/internal/gallery"
	"face-gallery/internal/handlers"
	"face-gallery/internal/indexer"
	"face-gallery/internal/logging"
	"face-gallery/internal/memory"
	"face-gallery/internal/metrics"
	"face-gallery/internal/pgstore"
	"face-gallery/internal/pipeline"
	"face-gallery/internal/scheduler"
	"face-gallery/internal/source"
	"face-gallery/internal/startup"
	"face-gallery/internal/workers"
)

var logger = logging.For("app")

// Decoder is satisfied by both the pure Go and the libvips decoder.
type Decoder interface {
	Decode(ctx context.Context, location string, maxWidth, maxHeight int) (*bitmap.Buffer, error)
}

// App owns every long-lived component and the order they start and stop in.
type App struct {
	Config *startup.Config

	// Index is the SQLite photo index. It also stores media and faces
	// unless STORE_DRIVER=postgres.
	Index *database.Database
	Store database.Store

	Pool       *bitmap.Pool
	Decoder    Decoder
	Detector   detector.Detector
	Annotator  *annotate.Annotator
	Thumbnails *annotate.Store
	Processor  *pipeline.Processor
	Scheduler  *scheduler.Scheduler
	Indexer    *indexer.Indexer
	Monitor    *memory.Monitor
	Collector  *metrics.Collector

	Pager  *gallery.PagingSource
	Tagger *gallery.Tagger
	Viewer *gallery.Viewer

	stores  *Stores
	closers []func() error
	cancel  context.CancelFunc
}

// New builds the application from cfg. Nothing runs until Start.
func New(ctx context.Context, cfg *startup.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			if cerr := a.Close(); cerr != nil {
				logger.Warn("cleanup after failed start: %v", cerr)
			}
		}
	}()

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"photos":   cfg.PhotoDir,
		"cache":    cfg.CacheDir,
		"database": cfg.DatabaseDir,
	}))

	a.stores, err = OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Index = a.stores.Index
	a.Store = a.stores.Store
	a.closers = append(a.closers, a.stores.Close)

	budget := memory.PoolBudget(cfg.PoolMemoryFraction)
	a.Pool = bitmap.NewPool(budget)
	startup.LogPoolInit(budget)

	switch cfg.DecoderBackend {
	case "vips":
		decoder.InitVips()
		a.closers = append(a.closers, func() error { decoder.ShutdownVips(); return nil })
		a.Decoder = decoder.NewVips(a.Pool, cfg.PhotoDir)
	default:
		a.Decoder = decoder.New(a.Pool, cfg.PhotoDir)
	}

	a.Detector, err = detector.New(detector.Config{
		Backend:   cfg.DetectorBackend,
		URL:       cfg.DetectorURL,
		ModelsDir: cfg.DetectorModels,
		Timeout:   cfg.DetectorTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	if c, ok := a.Detector.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	startup.LogDetectorInit(cfg.DetectorBackend, checkDetector(ctx, a.Detector))

	a.Annotator = annotate.New(a.Pool)
	a.Thumbnails, err = annotate.NewStore(cfg.ThumbnailDir, cfg.ThumbnailFormat, cfg.ThumbnailQuality)
	if err != nil {
		return nil, fmt.Errorf("thumbnail store: %w", err)
	}

	a.Monitor = memory.NewMonitor(memory.DefaultConfig())

	a.Processor = pipeline.New(pipeline.Config{
		PageSize:        cfg.PageSize,
		ConcurrentLimit: workers.Transforms(cfg.ConcurrentLimit),
		MaxWidth:        cfg.MaxWidth,
		MaxHeight:       cfg.MaxHeight,
		ThumbnailSize:   cfg.ThumbnailSize,
		KeepFaceless:    cfg.KeepFaceless,
	}, pipeline.Deps{
		Pool:       a.Pool,
		Source:     source.New(a.Index, cfg.CameraFilter),
		Decoder:    a.Decoder,
		Detector:   a.Detector,
		Annotator:  a.Annotator,
		Thumbnails: a.Thumbnails,
		Store:      a.Store,
		Throttle:   a.Monitor,
	})
	a.Processor.SetProgress(func(e pipeline.Event) {
		logger.Debug("page %d: media %d %s (processed=%d saved=%d)",
			e.Page, e.CandidateID, e.Outcome, e.Totals.TotalProcessed, e.Totals.TotalSaved)
	})

	a.Scheduler = scheduler.New(a.Processor, cfg.BatchInterval)

	a.Indexer = indexer.New(a.Index, cfg.PhotoDir, cfg.IndexInterval)
	a.Indexer.SetOnIndexComplete(a.onIndexComplete)

	a.Pager = gallery.NewPagingSource(a.Store, cfg.GalleryPageSize)
	a.Tagger = gallery.NewTagger(a.Store)
	a.Viewer = gallery.NewViewer(a.Store, a.Pool, a.Decoder, a.Detector, a.Annotator)

	a.Collector = metrics.NewCollector(a, time.Minute)
	return a, nil
}

// Stores are the photo index and the media store of a configuration. With
// STORE_DRIVER=postgres media and faces live in PostgreSQL while the photo
// index stays in SQLite.
type Stores struct {
	Index *database.Database
	Store database.Store

	pg *pgstore.Store
}

// OpenStores opens the stores cfg selects.
func OpenStores(ctx context.Context, cfg *startup.Config) (*Stores, error) {
	start := time.Now()

	index, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open photo index: %w", err)
	}
	s := &Stores{Index: index, Store: index}

	if cfg.StoreDriver != "postgres" {
		startup.LogDatabaseInit("sqlite", time.Since(start))
		return s, nil
	}

	pg, err := pgstore.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open postgres store: %w", err), index.Close())
	}
	s.Store = pg
	s.pg = pg
	startup.LogDatabaseInit("postgres", time.Since(start))
	return s, nil
}

// LibraryStats counts photos in the index and media and face tags in the
// media store.
func (s *Stores) LibraryStats(ctx context.Context) (metrics.Stats, error) {
	s.Index.UpdateDBMetrics()

	stats, err := s.Index.LibraryStats(ctx)
	if err != nil || s.pg == nil {
		return stats, err
	}

	s.pg.UpdateDBMetrics()
	if stats.Media, err = s.pg.CountMedia(ctx); err != nil {
		return stats, err
	}
	if stats.FaceTags, err = s.pg.CountFaces(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// Close closes the media store, then the index.
func (s *Stores) Close() error {
	var errs []error
	if s.pg != nil {
		errs = append(errs, s.pg.Close())
	}
	errs = append(errs, s.Index.Close())
	return errors.Join(errs...)
}

func checkDetector(ctx context.Context, d detector.Detector) error {
	hc, ok := d.(interface{ CheckHealth(context.Context) error })
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return hc.CheckHealth(ctx)
}

// onIndexComplete starts a batch when new photos may be waiting. A run in
// progress is left alone; it will pick them up on its later pages or the
// next run will.
func (a *App) onIndexComplete(result indexer.Result) {
	logger.Info("Index complete: %d photos, %d removed in %v", result.Photos, result.Removed, result.Duration)
	if a.Scheduler.Status().Running {
		return
	}
	a.Scheduler.Trigger()
}

// LibraryStats implements metrics.StatsProvider.
func (a *App) LibraryStats(ctx context.Context) (metrics.Stats, error) {
	return a.stores.LibraryStats(ctx)
}

// Start launches the background services: memory monitor, metrics
// collector, indexer and batch scheduler.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.Monitor.Start()
	if a.Config.MetricsEnabled {
		a.Collector.Start()
	}

	startup.LogIndexerInit(a.Config.IndexInterval)
	a.Indexer.Start(ctx)
	startup.LogIndexerStarted()

	startup.LogSchedulerInit(a.Config.BatchInterval)
	a.Scheduler.Start(ctx)
}

// Handlers builds the HTTP API over the application's services.
func (a *App) Handlers(ctx context.Context) *handlers.Handlers {
	return handlers.New(handlers.Deps{
		BaseContext: ctx,
		Indexer:     a.Indexer,
		Scheduler:   a.Scheduler,
		Stats:       a,
		Store:       a.Store,
		Pager:       a.Pager,
		Tagger:      a.Tagger,
		Viewer:      a.Viewer,
		Thumbnails:  a.Thumbnails,
	})
}

// Stop halts background services. A batch in progress is cancelled and
// writes nothing for its current page.
func (a *App) Stop() {
	startup.LogShutdownStep("Stopping batch scheduler")
	a.Scheduler.Stop()
	startup.LogShutdownStepComplete("Batch scheduler stopped")

	startup.LogShutdownStep("Stopping indexer")
	a.Indexer.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	if a.Config.MetricsEnabled {
		a.Collector.Stop()
	}
	a.Monitor.Stop()
	if a.cancel != nil {
		a.cancel()
	}
}

// Close releases stores, the detector and libvips in reverse order of
// creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.Pool != nil {
		a.Pool.Purge()
	}
	return errors.Join(errs...)
}
