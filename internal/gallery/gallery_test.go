package gallery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"math"
	"path/filepath"
	"testing"

	"face-gallery/internal/annotate"
	"face-gallery/internal/bitmap"
	"face-gallery/internal/database"
	"face-gallery/internal/detector"
)

func setupTestDB(t *testing.T, mediaCount int) *database.Database {
	t.Helper()
	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	records := make([]database.MediaRecord, mediaCount)
	for i := range records {
		id := int64(i + 1)
		records[i] = database.MediaRecord{ID: id, SourceLocation: "DCIM/Camera/x.jpg", ThumbnailLocation: "thumb"}
	}
	if err := db.BatchInsertMedia(ctx, records); err != nil {
		t.Fatal(err)
	}
	return db
}

type failingPager struct{}

func (failingPager) PagedMedia(context.Context, int, int) ([]database.MediaRecord, error) {
	return nil, errors.New("database is locked")
}

func ids(items []ProcessedMediaItem) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoad(t *testing.T) {
	src := NewPagingSource(setupTestDB(t, 25), 10)
	ctx := context.Background()

	tests := []struct {
		name     string
		key      *int
		wantIDs  []int64
		wantPrev *int
		wantNext *int
	}{
		{"first page", nil, []int64{25, 24, 23, 22, 21, 20, 19, 18, 17, 16}, nil, intPtr(1)},
		{"middle page", intPtr(1), []int64{15, 14, 13, 12, 11, 10, 9, 8, 7, 6}, intPtr(0), intPtr(2)},
		{"short last page", intPtr(2), []int64{5, 4, 3, 2, 1}, intPtr(1), nil},
		{"past the end", intPtr(3), []int64{}, intPtr(2), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := src.Load(ctx, LoadParams{Key: tt.key})
			if got.Err != nil {
				t.Fatalf("Load() error = %v", got.Err)
			}
			if !equalIDs(ids(got.Items), tt.wantIDs) {
				t.Errorf("Load() ids = %v, want %v", ids(got.Items), tt.wantIDs)
			}
			if !equalKey(got.PrevKey, tt.wantPrev) {
				t.Errorf("PrevKey = %v, want %v", deref(got.PrevKey), deref(tt.wantPrev))
			}
			if !equalKey(got.NextKey, tt.wantNext) {
				t.Errorf("NextKey = %v, want %v", deref(got.NextKey), deref(tt.wantNext))
			}
		})
	}
}

func TestLoadExactMultipleOfPageSize(t *testing.T) {
	src := NewPagingSource(setupTestDB(t, 10), 10)
	ctx := context.Background()

	first := src.Load(ctx, LoadParams{})
	if first.NextKey == nil {
		t.Fatal("full first page should offer a next key")
	}
	second := src.Load(ctx, LoadParams{Key: first.NextKey})
	if len(second.Items) != 0 || second.NextKey != nil {
		t.Errorf("second page = %+v, want empty and final", second)
	}
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	got := NewPagingSource(failingPager{}, 10).Load(ctx, LoadParams{})
	if got.Err == nil || got.Items != nil {
		t.Errorf("Load() on failing store = %+v, want an error result", got)
	}

	got = NewPagingSource(setupTestDB(t, 1), 10).Load(ctx, LoadParams{Key: intPtr(-1)})
	if !errors.Is(got.Err, ErrInvalidKey) {
		t.Errorf("Load(-1) error = %v, want ErrInvalidKey", got.Err)
	}

	huge := math.MaxInt / 5
	got = NewPagingSource(setupTestDB(t, 1), 10).Load(ctx, LoadParams{Key: &huge})
	if !errors.Is(got.Err, ErrInvalidKey) {
		t.Errorf("Load(MaxInt/5) error = %v, want ErrInvalidKey", got.Err)
	}
	if got.PrevKey != nil || got.Items != nil {
		t.Errorf("Load(MaxInt/5) = %+v, want no page", got)
	}
}

func TestRefreshKey(t *testing.T) {
	src := NewPagingSource(failingPager{}, 2)
	page := func(prev, next *int, n int) LoadResult {
		return LoadResult{Items: make([]ProcessedMediaItem, n), PrevKey: prev, NextKey: next}
	}
	pages := []LoadResult{
		page(nil, intPtr(1), 2),
		page(intPtr(0), intPtr(2), 2),
		page(intPtr(1), nil, 1),
	}

	tests := []struct {
		name   string
		state  PagingState
		wantFn *int
	}{
		{"no anchor", PagingState{Pages: pages}, nil},
		{"nothing loaded", PagingState{AnchorPosition: intPtr(0)}, nil},
		{"anchor on first page", PagingState{Pages: pages, AnchorPosition: intPtr(1)}, intPtr(0)},
		{"anchor on second page", PagingState{Pages: pages, AnchorPosition: intPtr(2)}, intPtr(1)},
		{"anchor on last page", PagingState{Pages: pages, AnchorPosition: intPtr(4)}, intPtr(2)},
		{"anchor past the end", PagingState{Pages: pages, AnchorPosition: intPtr(40)}, intPtr(2)},
		{"single page without keys", PagingState{Pages: []LoadResult{page(nil, nil, 1)}, AnchorPosition: intPtr(0)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := src.RefreshKey(tt.state); !equalKey(got, tt.wantFn) {
				t.Errorf("RefreshKey() = %v, want %v", deref(got), deref(tt.wantFn))
			}
		})
	}
}

func TestItems(t *testing.T) {
	src := NewPagingSource(setupTestDB(t, 7), 3)

	var got []int64
	for item, err := range src.Items(context.Background(), 3) {
		if err != nil {
			t.Fatalf("Items() error = %v", err)
		}
		got = append(got, item.ID)
	}
	if !equalIDs(got, []int64{7, 6, 5, 4, 3, 2, 1}) {
		t.Errorf("Items() = %v", got)
	}

	// Early exit stops paging.
	count := 0
	for range src.Items(context.Background(), 3) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("early break yielded %d items", count)
	}
}

func TestItemsError(t *testing.T) {
	src := NewPagingSource(failingPager{}, 3)
	errs := 0
	for _, err := range src.Items(context.Background(), 3) {
		if err != nil {
			errs++
		}
	}
	if errs != 1 {
		t.Errorf("Items() yielded %d errors, want 1", errs)
	}
}

func TestSaveFaceTag(t *testing.T) {
	db := setupTestDB(t, 3)
	tagger := NewTagger(db)
	ctx := context.Background()
	key := detector.FaceKey(2, image.Rect(1, 2, 30, 40))

	if err := tagger.SaveFaceTag(ctx, 2, key, "  alice "); err != nil {
		t.Fatalf("SaveFaceTag() error = %v", err)
	}
	if err := tagger.SaveFaceTag(ctx, 2, key, "bob"); err != nil {
		t.Fatalf("SaveFaceTag() retag error = %v", err)
	}

	faces, err := tagger.Faces(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(faces) != 1 || faces[0].Tag != "bob" || faces[0].FaceKey != key {
		t.Errorf("Faces() = %+v, want one face tagged bob", faces)
	}
}

func TestSaveFaceTagErrors(t *testing.T) {
	db := setupTestDB(t, 1)
	tagger := NewTagger(db)
	ctx := context.Background()
	long := string(bytes.Repeat([]byte("x"), MaxTagLength+1))

	tests := []struct {
		name    string
		mediaID int64
		key     string
		tag     string
		want    error
	}{
		{"malformed key", 1, "nope", "a", detector.ErrInvalidFaceKey},
		{"key of other media", 1, "faceId-2-0-0-1-1", "a", detector.ErrInvalidFaceKey},
		{"blank tag", 1, "faceId-1-0-0-1-1", "   ", ErrInvalidTag},
		{"overlong tag", 1, "faceId-1-0-0-1-1", long, ErrInvalidTag},
		{"unknown media", 9, "faceId-9-0-0-1-1", "a", database.ErrNotFound},
		{"non-canonical key", 1, "faceId-01-+5-05-20-20", "a", detector.ErrInvalidFaceKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tagger.SaveFaceTag(ctx, tt.mediaID, tt.key, tt.tag)
			if !errors.Is(err, tt.want) {
				t.Errorf("SaveFaceTag() error = %v, want %v", err, tt.want)
			}
		})
	}

	faces, err := tagger.Faces(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(faces) != 0 {
		t.Errorf("rejected tags were stored: %+v", faces)
	}
}

type stubDecoder struct{ pool *bitmap.Pool }

func (d stubDecoder) Decode(_ context.Context, _ string, _, _ int) (*bitmap.Buffer, error) {
	return d.pool.Acquire(64, 48, bitmap.FormatNRGBA)
}

type stubDetector struct{ faces []detector.Face }

func (d stubDetector) Detect(context.Context, *bitmap.Buffer) ([]detector.Face, error) {
	return d.faces, nil
}

func TestViewerInspect(t *testing.T) {
	db := setupTestDB(t, 1)
	pool := bitmap.NewPool(1 << 20)
	box := image.Rect(10, 10, 30, 30)
	ctx := context.Background()

	key := detector.FaceKey(1, box)
	if err := NewTagger(db).SaveFaceTag(ctx, 1, key, "carol"); err != nil {
		t.Fatal(err)
	}

	v := NewViewer(db, pool, stubDecoder{pool}, stubDetector{faces: []detector.Face{{Box: box}}}, annotate.New(pool))
	got, err := v.Inspect(ctx, 1)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if got.Width != 64 || got.Height != 48 {
		t.Errorf("size = %dx%d, want 64x48", got.Width, got.Height)
	}
	if len(got.Faces) != 1 || got.Faces[0].Key != key || got.Faces[0].Tag != "carol" {
		t.Errorf("Faces = %+v", got.Faces)
	}
	if got.Faces[0].Box != (Box{Left: 10, Top: 10, Right: 30, Bottom: 30}) {
		t.Errorf("Box = %+v", got.Faces[0].Box)
	}
	if _, err := jpeg.Decode(bytes.NewReader(got.JPEG)); err != nil {
		t.Errorf("JPEG does not decode: %v", err)
	}
	if stats := pool.Stats(); stats.InUse != 0 {
		t.Errorf("Inspect() leaked %d buffers", stats.InUse)
	}
}

func TestViewerInspectMissingMedia(t *testing.T) {
	db := setupTestDB(t, 0)
	pool := bitmap.NewPool(1 << 20)
	v := NewViewer(db, pool, stubDecoder{pool}, stubDetector{}, annotate.New(pool))

	if _, err := v.Inspect(context.Background(), 5); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Inspect() error = %v, want ErrNotFound", err)
	}
}

func equalKey(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
