package database

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Photo is one entry of the photo index: an image file below the photo
// root, identified by a monotonically assigned id.
type Photo struct {
	ID      int64     `json:"id"`
	Path    string    `json:"path"`
	Bucket  string    `json:"bucket"`
	TakenAt time.Time `json:"takenAt"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// MediaRecord marks a photo as processed. ID is the photo's id; the record
// is written once and never updated.
type MediaRecord struct {
	ID                int64     `json:"id"`
	SourceLocation    string    `json:"sourceLocation"`
	ThumbnailLocation string    `json:"thumbnailLocation"`
	CreatedAt         time.Time `json:"createdAt"`
}

// FaceRecord is a user-supplied tag for one face of a media record.
type FaceRecord struct {
	ID        int64     `json:"id"`
	MediaID   int64     `json:"mediaId"`
	FaceKey   string    `json:"faceKey"`
	Tag       string    `json:"tag"`
	UpdatedAt time.Time `json:"updatedAt"`
}
