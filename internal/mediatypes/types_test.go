package mediatypes

import "testing"

func TestIsPhoto(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		withVips bool
		want     bool
	}{
		{"jpeg", "IMG_0001.jpg", false, true},
		{"uppercase", "IMG_0001.JPEG", false, true},
		{"png", "shot.png", false, true},
		{"webp", "a.webp", false, true},
		{"heic without vips", "IMG_0002.HEIC", false, false},
		{"heic with vips", "IMG_0002.HEIC", true, true},
		{"video", "clip.mp4", true, false},
		{"no extension", "README", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPhoto(tt.file, tt.withVips); got != tt.want {
				t.Errorf("IsPhoto(%q, %v) = %v, want %v", tt.file, tt.withVips, got, tt.want)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".png", "image/png"},
		{".heic", "image/heic"},
		{".xyz", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := GetMimeType(tt.ext); got != tt.want {
			t.Errorf("GetMimeType(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"DCIM/Camera/IMG_1.jpg", "Camera"},
		{"Screenshots/s.png", "Screenshots"},
		{"root.jpg", ""},
	}

	for _, tt := range tests {
		if got := Bucket(tt.path); got != tt.want {
			t.Errorf("Bucket(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestExt(t *testing.T) {
	if got := Ext("a/b/C.JPG"); got != ".jpg" {
		t.Errorf("Ext() = %q, want .jpg", got)
	}
}
