package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"face-gallery/internal/database"
	"face-gallery/internal/detector"
	"face-gallery/internal/gallery"
	"face-gallery/internal/indexer"
	"face-gallery/internal/pipeline"
	"face-gallery/internal/scheduler"
)

type fakeIndexer struct {
	mu        sync.Mutex
	ready     bool
	indexing  bool
	status    indexer.HealthStatus
	triggered int
}

func (f *fakeIndexer) IsReady() bool { return f.ready }

func (f *fakeIndexer) IsIndexing() bool { return f.indexing }

func (f *fakeIndexer) GetHealthStatus() indexer.HealthStatus {
	s := f.status
	s.Ready = f.ready
	s.Indexing = f.indexing
	return s
}

func (f *fakeIndexer) TriggerIndex(_ context.Context) {
	f.mu.Lock()
	f.triggered++
	f.mu.Unlock()
}

type fakeScheduler struct {
	status    scheduler.Status
	triggered int
}

func (f *fakeScheduler) Trigger() { f.triggered++ }

func (f *fakeScheduler) Status() scheduler.Status { return f.status }

type fakeViewer struct {
	inspection *gallery.Inspection
	err        error
}

func (f *fakeViewer) Inspect(_ context.Context, _ int64) (*gallery.Inspection, error) {
	return f.inspection, f.err
}

type fakeRemover struct{ removed []int64 }

func (f *fakeRemover) Remove(id int64) error {
	f.removed = append(f.removed, id)
	return nil
}

type testEnv struct {
	db        *database.Database
	indexer   *fakeIndexer
	scheduler *fakeScheduler
	viewer    *fakeViewer
	thumbs    *fakeRemover
	thumbDir  string
	router    http.Handler
}

func newTestEnv(t *testing.T, mediaCount int) *testEnv {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()
	db, err := database.New(ctx, filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	thumbDir := filepath.Join(dir, "thumbnails")
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		t.Fatal(err)
	}

	records := make([]database.MediaRecord, mediaCount)
	for i := range records {
		id := int64(i + 1)
		records[i] = database.MediaRecord{
			ID:                id,
			SourceLocation:    fmt.Sprintf("DCIM/Camera/IMG_%04d.jpg", id),
			ThumbnailLocation: filepath.Join(thumbDir, fmt.Sprintf("thumb_%d.jpg", id)),
		}
	}
	if err := db.BatchInsertMedia(ctx, records); err != nil {
		t.Fatalf("BatchInsertMedia() error = %v", err)
	}

	env := &testEnv{
		db:        db,
		indexer:   &fakeIndexer{ready: true},
		scheduler: &fakeScheduler{},
		viewer:    &fakeViewer{},
		thumbs:    &fakeRemover{},
		thumbDir:  thumbDir,
	}

	h := New(Deps{
		Indexer:    env.indexer,
		Scheduler:  env.scheduler,
		Stats:      db,
		Store:      db,
		Pager:      gallery.NewPagingSource(db, 10),
		Tagger:     gallery.NewTagger(db),
		Viewer:     env.viewer,
		Thumbnails: env.thumbs,
	})
	env.router = h.Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestListMedia(t *testing.T) {
	env := newTestEnv(t, 25)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantFirst int64
		wantLen   int
		wantPrev  *int
		wantNext  *int
	}{
		{name: "first page", query: "", wantCode: 200, wantFirst: 25, wantLen: 10, wantNext: intPtr(1)},
		{name: "middle page", query: "?page=1", wantCode: 200, wantFirst: 15, wantLen: 10, wantPrev: intPtr(0), wantNext: intPtr(2)},
		{name: "last short page", query: "?page=2", wantCode: 200, wantFirst: 5, wantLen: 5, wantPrev: intPtr(1)},
		{name: "custom page size", query: "?page=0&pageSize=5", wantCode: 200, wantFirst: 25, wantLen: 5, wantNext: intPtr(1)},
		{name: "negative page", query: "?page=-1", wantCode: 400},
		{name: "page offset overflows", query: "?page=1000000000000000000", wantCode: 400},
		{name: "bad page size", query: "?pageSize=abc", wantCode: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "GET", "/api/media"+tt.query, "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != 200 {
				return
			}

			page := decode[gallery.LoadResult](t, w)
			if len(page.Items) != tt.wantLen {
				t.Fatalf("len(items) = %d, want %d", len(page.Items), tt.wantLen)
			}
			if page.Items[0].ID != tt.wantFirst {
				t.Errorf("first id = %d, want %d", page.Items[0].ID, tt.wantFirst)
			}
			if !equalKey(page.PrevKey, tt.wantPrev) || !equalKey(page.NextKey, tt.wantNext) {
				t.Errorf("keys = %v/%v, want %v/%v", deref(page.PrevKey), deref(page.NextKey), deref(tt.wantPrev), deref(tt.wantNext))
			}
		})
	}
}

func TestGetAndDeleteMedia(t *testing.T) {
	env := newTestEnv(t, 3)

	w := env.do(t, "GET", "/api/media/2", "")
	if w.Code != 200 {
		t.Fatalf("GET status = %d", w.Code)
	}
	if rec := decode[database.MediaRecord](t, w); rec.SourceLocation != "DCIM/Camera/IMG_0002.jpg" {
		t.Errorf("SourceLocation = %q", rec.SourceLocation)
	}

	if w := env.do(t, "GET", "/api/media/99", ""); w.Code != 404 {
		t.Errorf("missing media status = %d, want 404", w.Code)
	}

	if w := env.do(t, "DELETE", "/api/media/2", ""); w.Code != 204 {
		t.Fatalf("DELETE status = %d", w.Code)
	}
	if len(env.thumbs.removed) != 1 || env.thumbs.removed[0] != 2 {
		t.Errorf("thumbnails removed = %v, want [2]", env.thumbs.removed)
	}
	if w := env.do(t, "GET", "/api/media/2", ""); w.Code != 404 {
		t.Errorf("deleted media status = %d, want 404", w.Code)
	}
	if w := env.do(t, "DELETE", "/api/media/2", ""); w.Code != 404 {
		t.Errorf("second DELETE status = %d, want 404", w.Code)
	}
}

func TestNonNumericIDDoesNotRoute(t *testing.T) {
	env := newTestEnv(t, 1)

	if w := env.do(t, "GET", "/api/media/abc", ""); w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSaveFaceTag(t *testing.T) {
	env := newTestEnv(t, 2)
	key := detector.FaceKey(1, rect(10, 20, 110, 140))

	tests := []struct {
		name     string
		target   string
		body     string
		wantCode int
	}{
		{"saves tag", "/api/media/1/faces/" + key, `{"tag":"Alice"}`, 200},
		{"replaces tag", "/api/media/1/faces/" + key, `{"tag":"  Alice B  "}`, 200},
		{"empty tag", "/api/media/1/faces/" + key, `{"tag":"   "}`, 400},
		{"tag too long", "/api/media/1/faces/" + key, fmt.Sprintf(`{"tag":%q}`, strings.Repeat("x", 101)), 400},
		{"malformed key", "/api/media/1/faces/not-a-key", `{"tag":"Bob"}`, 400},
		{"key of other media", "/api/media/2/faces/" + key, `{"tag":"Bob"}`, 400},
		{"unknown media", "/api/media/9/faces/" + detector.FaceKey(9, rect(0, 0, 5, 5)), `{"tag":"Bob"}`, 404},
		{"invalid body", "/api/media/1/faces/" + key, `{tag`, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "PUT", tt.target, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}

	w := env.do(t, "GET", "/api/media/1/faces", "")
	if w.Code != 200 {
		t.Fatalf("GET faces status = %d", w.Code)
	}
	faces := decode[[]database.FaceRecord](t, w)
	if len(faces) != 1 || faces[0].FaceKey != key || faces[0].Tag != "Alice B" {
		t.Errorf("faces = %+v", faces)
	}

	w = env.do(t, "GET", "/api/media/2/faces", "")
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("faces of untagged media = %s, want []", got)
	}
	if w := env.do(t, "GET", "/api/media/9/faces", ""); w.Code != 404 {
		t.Errorf("faces of unknown media status = %d, want 404", w.Code)
	}
}

func TestGetThumbnail(t *testing.T) {
	env := newTestEnv(t, 2)
	content := []byte("\xff\xd8\xff thumbnail bytes")
	if err := os.WriteFile(filepath.Join(env.thumbDir, "thumb_1.jpg"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, "GET", "/api/thumbnail/1", "")
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.Equal(w.Body.Bytes(), content) {
		t.Error("thumbnail body mismatch")
	}

	if w := env.do(t, "GET", "/api/thumbnail/2", ""); w.Code != 404 {
		t.Errorf("missing file status = %d, want 404", w.Code)
	}
	if w := env.do(t, "GET", "/api/thumbnail/7", ""); w.Code != 404 {
		t.Errorf("unknown media status = %d, want 404", w.Code)
	}
}

func TestFullImageAndInspection(t *testing.T) {
	env := newTestEnv(t, 1)
	env.viewer.inspection = &gallery.Inspection{
		Width:  720,
		Height: 540,
		Faces:  []gallery.FaceView{{Key: "faceId-1-1-2-3-4", Tag: "Alice"}},
		JPEG:   []byte("jpeg"),
	}

	w := env.do(t, "GET", "/api/media/1/full", "")
	if w.Code != 200 || w.Body.String() != "jpeg" {
		t.Fatalf("full: %d %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Face-Count"); got != "1" {
		t.Errorf("X-Face-Count = %q", got)
	}

	w = env.do(t, "GET", "/api/media/1/inspect", "")
	if got := decode[gallery.Inspection](t, w); got.Width != 720 || len(got.Faces) != 1 {
		t.Errorf("inspection = %+v", got)
	}

	env.viewer.inspection = nil
	env.viewer.err = fmt.Errorf("lookup: %w", database.ErrNotFound)
	if w := env.do(t, "GET", "/api/media/1/full", ""); w.Code != 404 {
		t.Errorf("not found status = %d", w.Code)
	}

	env.viewer.err = errors.New("decoder exploded")
	if w := env.do(t, "GET", "/api/media/1/full", ""); w.Code != 500 {
		t.Errorf("decode failure status = %d", w.Code)
	}
}

func TestBatchEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)
	env.scheduler.status = scheduler.Status{
		Running: true,
		State:   pipeline.StateProcessing,
		Runs:    4,
	}

	w := env.do(t, "GET", "/api/batch", "")
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["state"] != "processing" || body["running"] != true {
		t.Errorf("batch status = %v", body)
	}

	w = env.do(t, "POST", "/api/batch", "")
	if w.Code != 202 || env.scheduler.triggered != 1 {
		t.Errorf("trigger: %d, triggered=%d", w.Code, env.scheduler.triggered)
	}
	if msg := decode[map[string]string](t, w)["message"]; !strings.Contains(msg, "restarted") {
		t.Errorf("message = %q", msg)
	}
}

func TestTriggerIndex(t *testing.T) {
	env := newTestEnv(t, 0)

	if w := env.do(t, "POST", "/api/index", ""); w.Code != 202 {
		t.Errorf("status = %d, want 202", w.Code)
	}
	if env.indexer.triggered != 1 {
		t.Errorf("triggered = %d", env.indexer.triggered)
	}

	env.indexer.indexing = true
	w := env.do(t, "POST", "/api/index", "")
	if decode[map[string]string](t, w)["status"] != "already_running" {
		t.Error("expected already_running while indexing")
	}
	if env.indexer.triggered != 1 {
		t.Errorf("triggered while running: %d", env.indexer.triggered)
	}
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t, 3)
	key := detector.FaceKey(1, rect(0, 0, 10, 10))
	if w := env.do(t, "PUT", "/api/media/1/faces/"+key, `{"tag":"Alice"}`); w.Code != 200 {
		t.Fatalf("save tag status = %d", w.Code)
	}

	w := env.do(t, "GET", "/api/stats", "")
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	stats := decode[StatsResponse](t, w)
	if stats.Media != 3 || stats.FaceTags != 1 {
		t.Errorf("stats = %+v", stats.Stats)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)
	env.indexer.ready = false
	env.indexer.status = indexer.HealthStatus{Uptime: "1s"}

	w := env.do(t, "GET", "/health", "")
	if w.Code != 503 {
		t.Errorf("health while starting = %d, want 503", w.Code)
	}
	if resp := decode[HealthResponse](t, w); resp.Status != statusStarting {
		t.Errorf("status = %q", resp.Status)
	}
	if w := env.do(t, "GET", "/readyz", ""); w.Code != 503 {
		t.Errorf("readyz while starting = %d", w.Code)
	}

	env.indexer.ready = true
	env.indexer.status.LastIndexed = time.Now()
	env.scheduler.status.LastFinished = time.Now()
	w = env.do(t, "GET", "/healthz", "")
	resp := decode[HealthResponse](t, w)
	if w.Code != 200 || resp.Status != statusHealthy || resp.LastBatchRun == "" {
		t.Errorf("healthz = %d %+v", w.Code, resp)
	}

	env.indexer.status.InitialIndexError = "photo dir missing"
	if resp := decode[HealthResponse](t, env.do(t, "GET", "/health", "")); resp.Status != statusDegraded {
		t.Errorf("status with index error = %q", resp.Status)
	}

	if w := env.do(t, "HEAD", "/livez", ""); w.Code != 200 || w.Body.Len() != 0 {
		t.Errorf("HEAD livez = %d, body %d bytes", w.Code, w.Body.Len())
	}
	if w := env.do(t, "GET", "/version", ""); w.Code != 200 {
		t.Errorf("version = %d", w.Code)
	}
}

func TestMetricsHandler(t *testing.T) {
	h := New(Deps{})
	w := httptest.NewRecorder()
	h.MetricsHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", http.NoBody))

	if w.Code != 200 || !strings.Contains(w.Body.String(), "promhttp_metric_handler_requests_total") {
		t.Errorf("metrics = %d", w.Code)
	}
}

func rect(l, t, r, b int) image.Rectangle { return image.Rect(l, t, r, b) }

func intPtr(v int) *int { return &v }

func equalKey(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
