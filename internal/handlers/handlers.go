package handlers

import (
	"context"

	"face-gallery/internal/database"
	"face-gallery/internal/gallery"
	"face-gallery/internal/indexer"
	"face-gallery/internal/metrics"
	"face-gallery/internal/scheduler"
)

// IndexerService is the part of the photo indexer the API uses.
type IndexerService interface {
	IsReady() bool
	IsIndexing() bool
	GetHealthStatus() indexer.HealthStatus
	TriggerIndex(ctx context.Context)
}

// BatchScheduler starts batch runs and reports their state.
type BatchScheduler interface {
	Trigger()
	Status() scheduler.Status
}

// MediaStore is the part of database.Store the API reads and deletes through.
type MediaStore interface {
	GetMedia(ctx context.Context, id int64) (*database.MediaRecord, error)
	DeleteMedia(ctx context.Context, id int64) error
}

// Pager loads gallery pages.
type Pager interface {
	Load(ctx context.Context, params gallery.LoadParams) gallery.LoadResult
	PageSize() int
}

// FaceTagger reads and writes face tags.
type FaceTagger interface {
	SaveFaceTag(ctx context.Context, mediaID int64, faceKey, tag string) error
	Faces(ctx context.Context, mediaID int64) ([]database.FaceRecord, error)
}

// Inspector renders a media record at view size with its faces outlined.
type Inspector interface {
	Inspect(ctx context.Context, mediaID int64) (*gallery.Inspection, error)
}

// ThumbnailRemover deletes a cached thumbnail.
type ThumbnailRemover interface {
	Remove(id int64) error
}

// Deps are the services behind the API. BaseContext bounds background work
// started by a request, such as a triggered re-index.
type Deps struct {
	BaseContext context.Context
	Indexer     IndexerService
	Scheduler   BatchScheduler
	Stats       metrics.StatsProvider
	Store       MediaStore
	Pager       Pager
	Tagger      FaceTagger
	Viewer      Inspector
	Thumbnails  ThumbnailRemover
}

// Handlers serves the gallery API.
type Handlers struct {
	baseCtx    context.Context
	indexer    IndexerService
	scheduler  BatchScheduler
	stats      metrics.StatsProvider
	store      MediaStore
	pager      Pager
	tagger     FaceTagger
	viewer     Inspector
	thumbnails ThumbnailRemover
}

func New(d Deps) *Handlers {
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	return &Handlers{
		baseCtx:    d.BaseContext,
		indexer:    d.Indexer,
		scheduler:  d.Scheduler,
		stats:      d.Stats,
		store:      d.Store,
		pager:      d.Pager,
		tagger:     d.Tagger,
		viewer:     d.Viewer,
		thumbnails: d.Thumbnails,
	}
}
