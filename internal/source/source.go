package source

import (
	"context"
	"errors"
	"fmt"

	"face-gallery/internal/database"
)

// DefaultFilter selects camera-originated photos.
const DefaultFilter = "DCIM/Camera"

// CandidateImage is a photo that may still need processing. Location is
// relative to the photo root.
type CandidateImage struct {
	ID       int64
	Location string
}

// PhotoIndex is the paged photo query the enumerator runs against.
type PhotoIndex interface {
	ListPhotos(ctx context.Context, filter string, limit, offset int) ([]database.Photo, error)
}

// Enumerator lists candidate images newest first, restricted to paths
// containing Filter.
type Enumerator struct {
	index  PhotoIndex
	filter string
}

// New returns an enumerator over index. An empty filter lists every photo.
func New(index PhotoIndex, filter string) *Enumerator {
	return &Enumerator{index: index, filter: filter}
}

// Filter returns the path filter in use.
func (e *Enumerator) Filter() string { return e.filter }

// List returns up to pageSize candidates starting at offset, ordered by
// capture time descending. An empty result means there is no more data.
func (e *Enumerator) List(ctx context.Context, pageSize, offset int) ([]CandidateImage, error) {
	if pageSize <= 0 {
		return nil, errors.New("page size must be positive")
	}
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}

	photos, err := e.index.ListPhotos(ctx, e.filter, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}

	candidates := make([]CandidateImage, len(photos))
	for i, p := range photos {
		candidates[i] = CandidateImage{ID: p.ID, Location: p.Path}
	}
	return candidates, nil
}
