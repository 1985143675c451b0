package database

import "context"

// Store is the persistence contract for processed media and face tags.
// *Database (SQLite) and *pgstore.Store (PostgreSQL) implement it.
type Store interface {
	// ExistingMediaIDs returns the subset of ids that already have a record.
	ExistingMediaIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	// BatchInsertMedia writes all records in one transaction. Records whose
	// id already exists are left untouched.
	BatchInsertMedia(ctx context.Context, records []MediaRecord) error
	GetMedia(ctx context.Context, id int64) (*MediaRecord, error)
	// PagedMedia lists records by id descending.
	PagedMedia(ctx context.Context, limit, offset int) ([]MediaRecord, error)
	// DeleteMedia removes a record and, by cascade, its face tags.
	DeleteMedia(ctx context.Context, id int64) error
	CountMedia(ctx context.Context) (int, error)

	// InsertOrUpdateFace sets the tag for (MediaID, FaceKey). It returns
	// ErrNotFound when the media record does not exist.
	InsertOrUpdateFace(ctx context.Context, face FaceRecord) error
	FacesForMedia(ctx context.Context, mediaID int64) ([]FaceRecord, error)
	CountFaces(ctx context.Context) (int, error)

	Close() error
}

var _ Store = (*Database)(nil)
