package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "face_gallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "face_gallery_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "face_gallery_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "face_gallery_db_connections_open",
			Help: "Number of open database connections",
		},
		[]string{"driver"},
	)
)

// Photo index metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_indexer_runs_total",
			Help: "Total number of photo index runs",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_indexer_last_run_timestamp",
			Help: "Unix timestamp of the last completed photo index run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_indexer_last_run_duration_seconds",
			Help: "Duration of the last photo index run in seconds",
		},
	)

	IndexerPhotosProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_indexer_photos_processed_total",
			Help: "Total number of photos recorded by the indexer",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_indexer_running",
			Help: "Whether the photo indexer is currently running (1) or not (0)",
		},
	)
)

// Batch pipeline metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_pipeline_runs_total",
			Help: "Total number of batch runs by final state",
		},
		[]string{"state"}, // "done", "failed", "cancelled"
	)

	PipelineRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_pipeline_running",
			Help: "Whether a batch run is in progress (1) or not (0)",
		},
	)

	PipelineLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_pipeline_last_run_timestamp",
			Help: "Unix timestamp of the last finished batch run",
		},
	)

	PipelineLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_pipeline_last_run_duration_seconds",
			Help: "Duration of the last batch run in seconds",
		},
	)

	PipelinePagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_pipeline_pages_total",
			Help: "Total number of source pages examined",
		},
	)

	PipelineImagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_pipeline_images_total",
			Help: "Candidate images by outcome",
		},
		[]string{"outcome"}, // "skipped", "saved", "no_faces", "decode_error", "detect_error", "transform_error", "save_error", "cancelled"
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "face_gallery_pipeline_stage_duration_seconds",
			Help:    "Per-image stage duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"}, // "decode", "detect", "annotate", "thumbnail", "save"
	)

	PipelineTransformsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_pipeline_transforms_in_flight",
			Help: "Number of per-image transforms currently running",
		},
	)

	DetectorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "face_gallery_detector_request_duration_seconds",
			Help:    "Face detector call duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend", "status"},
	)

	DetectorFacesFound = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "face_gallery_detector_faces_per_image",
			Help:    "Number of faces reported per detected image",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)
)

// Bitmap pool metrics
var (
	BitmapPoolRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_bitmap_pool_requests_total",
			Help: "Buffer acquisitions by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	BitmapPoolEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_bitmap_pool_evictions_total",
			Help: "Idle buffers dropped to stay within the pool budget",
		},
	)

	BitmapPoolRejectedReleases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_bitmap_pool_rejected_releases_total",
			Help: "Releases refused because the buffer was not checked out from the pool",
		},
	)

	BitmapPoolIdleBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_bitmap_pool_idle_bytes",
			Help: "Bytes held by idle buffers",
		},
	)

	BitmapPoolIdleBuffers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_bitmap_pool_idle_buffers",
			Help: "Number of idle buffers held by the pool",
		},
	)

	BitmapPoolBudgetBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_bitmap_pool_budget_bytes",
			Help: "Configured byte budget of the bitmap pool",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_thumbnail_writes_total",
			Help: "Thumbnail files written by status",
		},
		[]string{"format", "status"},
	)

	ThumbnailBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_thumbnail_bytes_written_total",
			Help: "Total encoded thumbnail bytes written",
		},
	)
)

// Library metrics
var (
	LibraryMediaTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_media_total",
			Help: "Number of processed media records",
		},
	)

	LibraryFaceTagsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_face_tags_total",
			Help: "Number of tagged faces",
		},
	)

	LibraryPhotosTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_photos_indexed_total",
			Help: "Number of photos in the photo index",
		},
	)

	GalleryPageLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_gallery_page_loads_total",
			Help: "Gallery page loads by status",
		},
		[]string{"status"},
	)

	FaceTagsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_face_tag_saves_total",
			Help: "Face tag save attempts by status",
		},
		[]string{"status"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "face_gallery_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation latency by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_filesystem_retry_attempts_total",
			Help: "Retries after stale NFS file handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_memory_paused",
			Help: "Whether image processing is paused for memory pressure (1) or not (0)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_memory_gc_pauses_total",
			Help: "Number of times processing paused for memory pressure",
		},
	)
)

// Application info metric
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "face_gallery_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
