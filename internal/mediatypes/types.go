package mediatypes

import (
	"path/filepath"
	"strings"
)

// PhotoExtensions maps lowercase file extensions to whether the in-process
// decoder can read them.
var PhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// VipsExtensions are additionally readable when the libvips decoder is used.
var VipsExtensions = map[string]bool{
	".heic": true,
	".heif": true,
	".avif": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",
}

// Ext returns the lowercase extension of name including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsPhoto reports whether name has an extension the decoder supports.
// withVips widens the set to formats only libvips can read.
func IsPhoto(name string, withVips bool) bool {
	ext := Ext(name)
	if PhotoExtensions[ext] {
		return true
	}
	return withVips && VipsExtensions[ext]
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// Bucket returns the name of the directory holding a photo, the way camera
// apps group images into albums. Photos at the root have an empty bucket.
func Bucket(relPath string) string {
	dir := filepath.Dir(filepath.ToSlash(relPath))
	if dir == "." || dir == "/" {
		return ""
	}
	return filepath.Base(dir)
}
