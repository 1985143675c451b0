// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]
// ([ParseEnv] parses without creating directories):
//
//   - PHOTO_DIR: Root of the photo library (default: /photos)
//   - CAMERA_FILTER: Substring a photo path must contain to be processed (default: DCIM/Camera)
//   - CACHE_DIR: Cache directory; thumbnails go to CACHE_DIR/thumbnails (default: /cache)
//   - DATABASE_DIR: Directory holding the SQLite database (default: /database)
//   - STORE_DRIVER: sqlite or postgres (default: sqlite)
//   - POSTGRES_URL: Connection string when STORE_DRIVER=postgres
//   - PORT / METRICS_PORT / METRICS_ENABLED: HTTP listeners (default: 8080 / 9090 / true)
//   - BATCH_INTERVAL: Periodic batch run interval, 0 disables (default: 15m)
//   - INDEX_INTERVAL: Full re-index interval, 0 disables (default: 30m)
//   - PAGE_SIZE: Candidates fetched per page (default: 20)
//   - CONCURRENT_LIMIT: Transforms in flight (default: 3)
//   - DECODE_MAX_WIDTH / DECODE_MAX_HEIGHT: Decode bounds (default: 720 / 1280)
//   - THUMBNAIL_SIZE / THUMBNAIL_FORMAT / THUMBNAIL_QUALITY (default: 200 / jpeg / 85)
//   - POOL_MEMORY_FRACTION: Share of the memory limit for pooled bitmaps (default: 0.125)
//   - KEEP_FACELESS: Persist images with no detected faces (default: false)
//   - DECODER_BACKEND: go or vips (default: go)
//   - DETECTOR_BACKEND: http or goface (default: http)
//   - DETECTOR_URL / DETECTOR_MODELS_DIR / DETECTOR_TIMEOUT
//   - GALLERY_PAGE_SIZE: Gallery page size (default: 10)
//   - LOG_LEVEL / LOG_HEALTH_CHECKS
//
// # Lifecycle Logging
//
// The Log* functions print the banner-style sections seen at startup and
// shutdown. [LogHTTPRoutes] walks the mux router and prints every route at
// debug level.
package startup
