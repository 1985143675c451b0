// Package database provides SQLite storage for the face gallery.
//
// It holds three tables:
//   - photos: the photo index maintained by the indexer
//   - media: one immutable record per processed photo
//   - faces: user-supplied tags keyed by (media id, face key)
//
// The database uses WAL mode for concurrent readers, enables foreign keys
// so that deleting a media record cascades to its face tags, and creates
// its schema on first open.
package database
