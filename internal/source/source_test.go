package source

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"face-gallery/internal/database"
)

type failingIndex struct{ err error }

func (f failingIndex) ListPhotos(context.Context, string, int, int) ([]database.Photo, error) {
	return nil, f.err
}

func seededDB(t *testing.T) *database.Database {
	t.Helper()
	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var photos []database.Photo
	for i, p := range []string{"DCIM/Camera/a.jpg", "DCIM/Camera/b.jpg", "DCIM/Camera/c.jpg", "Download/d.jpg"} {
		photos = append(photos, database.Photo{Path: p, TakenAt: base.Add(time.Duration(i) * time.Hour), ModTime: base})
	}

	b, err := db.BeginBatch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.EndBatch(b, db.UpsertPhotos(ctx, b, photos)); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestListPages(t *testing.T) {
	e := New(seededDB(t), DefaultFilter)
	ctx := context.Background()

	tests := []struct {
		name   string
		size   int
		offset int
		want   []string
	}{
		{"first page", 2, 0, []string{"DCIM/Camera/c.jpg", "DCIM/Camera/b.jpg"}},
		{"short page", 2, 2, []string{"DCIM/Camera/a.jpg"}},
		{"end of data", 2, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.List(ctx, tt.size, tt.offset)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() = %+v, want %v", got, tt.want)
			}
			for i, loc := range tt.want {
				if got[i].Location != loc {
					t.Errorf("candidate %d = %q, want %q", i, got[i].Location, loc)
				}
				if got[i].ID == 0 {
					t.Errorf("candidate %d has no id", i)
				}
			}
		})
	}
}

func TestListWithoutFilter(t *testing.T) {
	e := New(seededDB(t), "")
	got, err := e.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 || got[0].Location != "Download/d.jpg" {
		t.Errorf("List() = %+v, want all 4 photos newest first", got)
	}
}

func TestListInvalidArguments(t *testing.T) {
	e := New(failingIndex{}, DefaultFilter)
	if _, err := e.List(context.Background(), 0, 0); err == nil {
		t.Error("List() with zero page size should fail")
	}
	if _, err := e.List(context.Background(), 5, -1); err == nil {
		t.Error("List() with negative offset should fail")
	}
}

func TestListPropagatesIndexError(t *testing.T) {
	sentinel := errors.New("disk gone")
	e := New(failingIndex{err: sentinel}, DefaultFilter)
	if _, err := e.List(context.Background(), 5, 0); !errors.Is(err, sentinel) {
		t.Errorf("List() error = %v, want wrapped sentinel", err)
	}
}
