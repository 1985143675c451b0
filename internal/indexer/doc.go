// Package indexer maintains the photo index that the batch pipeline pages
// through.
//
// It walks the configured photo directory with a small pool of workers,
// reading each supported image's EXIF capture time (falling back to the
// file modification time), and upserts the results into the photos table in
// batched transactions. Ids are assigned once per path and stay stable
// across runs so that processed media remain linked to their source photo.
//
// The indexer operates in several modes:
//   - Initial index: full scan on application startup
//   - Periodic index: interval-based re-indexing
//   - Change polling: lightweight root and top-level directory checks
//   - Manual trigger: on-demand re-indexing via API or CLI
//
// Photos that no longer exist on disk are removed from the index during
// each scan. Hidden files and directories (prefixed with '.') are skipped.
package indexer
