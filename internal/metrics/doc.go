// Package metrics provides Prometheus instrumentation for the face gallery.
//
// All metrics are registered through promauto at package initialization and
// prefixed with "face_gallery_". The categories are:
//
//   - HTTP: request counts, latency and in-flight requests
//   - Database: query counts and latency per operation, transaction outcome
//   - Photo index: indexer runs, duration and errors
//   - Pipeline: batch runs by final state, pages examined, candidate images
//     by outcome, per-stage latency and in-flight transforms
//   - Detector: call latency per backend and faces per image
//   - Bitmap pool: hits, misses, evictions, rejected releases, idle bytes
//   - Thumbnails: files written and bytes written
//   - Library: processed media, tagged faces and indexed photos, refreshed
//     by Collector from a StatsProvider
//   - Filesystem: NFS retry behavior, reported through the filesystem
//     Observer returned by NewFilesystemObserver
//   - Memory: usage ratio and processing pauses
//
// Call InitializeMetrics once at startup so labelled series exist before
// the first scrape.
package metrics
