package gallery

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"

	"face-gallery/internal/database"
	"face-gallery/internal/metrics"
)

// DefaultPageSize is the page size used when a load does not name one.
const DefaultPageSize = 10

// ErrInvalidKey is reported for negative page keys and for keys whose
// offset does not fit in an int.
var ErrInvalidKey = errors.New("invalid page key")

// ProcessedMediaItem is one gallery entry.
type ProcessedMediaItem struct {
	ID                int64  `json:"id"`
	ThumbnailLocation string `json:"thumbnailLocation"`
}

// MediaPager reads persisted media records by id descending.
type MediaPager interface {
	PagedMedia(ctx context.Context, limit, offset int) ([]database.MediaRecord, error)
}

// LoadParams selects a page. A nil Key loads the first page.
type LoadParams struct {
	Key      *int
	PageSize int
}

// LoadResult is a page of items, or Err when the store could not be read.
// PrevKey is nil on the first page; NextKey is nil once a page comes back
// shorter than requested.
type LoadResult struct {
	Items   []ProcessedMediaItem `json:"items"`
	PrevKey *int                 `json:"prevKey"`
	NextKey *int                 `json:"nextKey"`
	Err     error                `json:"-"`
}

// PagingState is what the gallery has loaded so far: its pages in order and
// the position of the item the user was last looking at.
type PagingState struct {
	Pages          []LoadResult
	AnchorPosition *int
}

// PagingSource serves persisted media to the gallery. Keys are page
// numbers starting at zero. It never writes.
type PagingSource struct {
	store    MediaPager
	pageSize int
}

// NewPagingSource creates a paging source. A non-positive pageSize uses
// DefaultPageSize.
func NewPagingSource(store MediaPager, pageSize int) *PagingSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &PagingSource{store: store, pageSize: pageSize}
}

// PageSize returns the default page size.
func (s *PagingSource) PageSize() int { return s.pageSize }

// Load returns the page at params.Key.
func (s *PagingSource) Load(ctx context.Context, params LoadParams) LoadResult {
	page := 0
	if params.Key != nil {
		page = *params.Key
	}
	size := params.PageSize
	if size <= 0 {
		size = s.pageSize
	}

	if page < 0 || page > math.MaxInt/size {
		metrics.GalleryPageLoads.WithLabelValues("error").Inc()
		return LoadResult{Err: fmt.Errorf("%w: %d", ErrInvalidKey, page)}
	}

	records, err := s.store.PagedMedia(ctx, size, page*size)
	if err != nil {
		metrics.GalleryPageLoads.WithLabelValues("error").Inc()
		return LoadResult{Err: fmt.Errorf("load page %d: %w", page, err)}
	}
	metrics.GalleryPageLoads.WithLabelValues("success").Inc()

	items := make([]ProcessedMediaItem, len(records))
	for i, r := range records {
		items[i] = ProcessedMediaItem{ID: r.ID, ThumbnailLocation: r.ThumbnailLocation}
	}

	result := LoadResult{Items: items}
	if page > 0 {
		result.PrevKey = intPtr(page - 1)
	}
	if len(items) == size {
		result.NextKey = intPtr(page + 1)
	}
	return result
}

// RefreshKey maps the anchor position back to the key of the page holding
// it, so a reload resumes where the user was. It returns nil when there is
// no anchor or nothing has been loaded.
func (s *PagingSource) RefreshKey(state PagingState) *int {
	if state.AnchorPosition == nil {
		return nil
	}
	page, ok := closestPage(state, *state.AnchorPosition)
	if !ok {
		return nil
	}
	if page.PrevKey != nil {
		return intPtr(*page.PrevKey + 1)
	}
	if page.NextKey != nil {
		return intPtr(*page.NextKey - 1)
	}
	return nil
}

// closestPage returns the loaded page containing position, clamped to the
// first or last page.
func closestPage(state PagingState, position int) (LoadResult, bool) {
	if len(state.Pages) == 0 {
		return LoadResult{}, false
	}
	if position < 0 {
		return state.Pages[0], true
	}
	seen := 0
	for _, p := range state.Pages {
		seen += len(p.Items)
		if position < seen {
			return p, true
		}
	}
	return state.Pages[len(state.Pages)-1], true
}

// Items walks every persisted item page by page. It stops after the first
// error, which is yielded with a zero item.
func (s *PagingSource) Items(ctx context.Context, pageSize int) iter.Seq2[ProcessedMediaItem, error] {
	return func(yield func(ProcessedMediaItem, error) bool) {
		var key *int
		for {
			result := s.Load(ctx, LoadParams{Key: key, PageSize: pageSize})
			if result.Err != nil {
				yield(ProcessedMediaItem{}, result.Err)
				return
			}
			for _, item := range result.Items {
				if !yield(item, nil) {
					return
				}
			}
			if result.NextKey == nil {
				return
			}
			key = result.NextKey
		}
	}
}

func intPtr(v int) *int { return &v }
