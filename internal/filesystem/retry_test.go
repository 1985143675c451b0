package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"photos":   "/photos",
		"cache":    "/cache",
		"nested":   "/photos/DCIM",
		"database": "/database",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/photos/a.jpg", "photos"},
		{"/photos/DCIM/Camera/b.jpg", "nested"},
		{"/photos", "photos"},
		{"/cache/thumbnails/thumb_1.png", "cache"},
		{"/photosx/a.jpg", "unknown"},
		{"/tmp/a.jpg", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	var nilResolver *VolumeResolver
	if got := nilResolver.Resolve("/photos/a.jpg"); got != "unknown" {
		t.Errorf("nil resolver = %q, want unknown", got)
	}
}

func TestWithRetryRetriesStaleHandles(t *testing.T) {
	config := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	calls := 0
	got, err := withRetry("open", "/photos/a.jpg", config, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	config := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	calls := 0
	_, err := withRetry("stat", "/photos/a.jpg", config, func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("error = %v, want ESTALE", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	_, err := withRetry("open", "/photos/a.jpg", DefaultRetryConfig(), func() (int, error) {
		calls++
		return 0, os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) || calls != 1 {
		t.Errorf("err = %v after %d calls, want ErrPermission after 1", err, calls)
	}
}

func TestOpenAndStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil || info.Size() != 4 {
		t.Fatalf("StatWithRetry() = %v, %v", info, err)
	}

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	_ = f.Close()

	if _, err := OpenWithRetry(filepath.Join(dir, "missing.jpg"), DefaultRetryConfig()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thumb_1.png")

	if err := WriteFileAtomic(path, []byte("first"), DefaultRetryConfig()); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), DefaultRetryConfig()); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "second" {
		t.Errorf("content = %q, %v; want second", data, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the target file", len(entries))
	}

	if err := WriteFileAtomic(filepath.Join(dir, "missing", "x.png"), []byte("x"), DefaultRetryConfig()); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}
