package annotate

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"face-gallery/internal/bitmap"
	"face-gallery/internal/filesystem"
	"face-gallery/internal/metrics"
)

// ThumbnailPrefix starts every thumbnail file name.
const ThumbnailPrefix = "thumb_"

// Store writes encoded thumbnails to a cache directory as
// thumb_<id>.<ext>.
type Store struct {
	dir     string
	format  imaging.Format
	ext     string
	quality int
	retry   filesystem.RetryConfig
}

// NewStore creates the thumbnail directory if needed. format is "png" or
// "jpeg"; quality applies to JPEG only.
func NewStore(dir, format string, quality int) (*Store, error) {
	s := &Store{dir: dir, quality: quality, retry: filesystem.DefaultRetryConfig()}

	switch strings.ToLower(format) {
	case "", "png":
		s.format, s.ext = imaging.PNG, "png"
	case "jpeg", "jpg":
		s.format, s.ext = imaging.JPEG, "jpg"
	default:
		return nil, fmt.Errorf("unsupported thumbnail format %q", format)
	}
	if s.quality <= 0 || s.quality > 100 {
		s.quality = 80
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail directory: %w", err)
	}
	return s, nil
}

// Dir returns the thumbnail directory.
func (s *Store) Dir() string { return s.dir }

// Path returns where the thumbnail for id is stored.
func (s *Store) Path(id int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d.%s", ThumbnailPrefix, id, s.ext))
}

// ContentType returns the MIME type of stored thumbnails.
func (s *Store) ContentType() string {
	if s.format == imaging.JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Save encodes buf and writes it for id, replacing any previous file.
// It returns the durable location. buf stays owned by the caller.
func (s *Store) Save(id int64, buf *bitmap.Buffer) (string, error) {
	start := time.Now()
	path := s.Path(id)

	var encoded bytes.Buffer
	var err error
	if s.format == imaging.JPEG {
		err = imaging.Encode(&encoded, buf.Image(), imaging.JPEG, imaging.JPEGQuality(s.quality))
	} else {
		err = imaging.Encode(&encoded, buf.Image(), imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
	}
	if err == nil {
		err = filesystem.WriteFileAtomic(path, encoded.Bytes(), s.retry)
	}

	if err != nil {
		metrics.ThumbnailWritesTotal.WithLabelValues(s.ext, "error").Inc()
		return "", fmt.Errorf("save thumbnail %d: %w", id, err)
	}

	metrics.ThumbnailWritesTotal.WithLabelValues(s.ext, "success").Inc()
	metrics.ThumbnailBytesWritten.Add(float64(encoded.Len()))
	metrics.PipelineStageDuration.WithLabelValues("save").Observe(time.Since(start).Seconds())
	return path, nil
}

// Remove deletes the thumbnail for id. A missing file is not an error.
func (s *Store) Remove(id int64) error {
	if err := os.Remove(s.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
