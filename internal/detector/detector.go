package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"face-gallery/internal/bitmap"
)

// Face is one detected face. Box is in the pixel coordinates of the
// buffer that was passed to Detect.
type Face struct {
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence,omitempty"`
}

// Key returns the stable FaceKey of this face within a media record.
func (f Face) Key(mediaID int64) string {
	return FaceKey(mediaID, f.Box)
}

// FaceKey derives the identifier used to tag a face. The same media id and
// box always produce the same key.
func FaceKey(mediaID int64, box image.Rectangle) string {
	return fmt.Sprintf("faceId-%d-%d-%d-%d-%d", mediaID, box.Min.X, box.Min.Y, box.Max.X, box.Max.Y)
}

// ErrInvalidFaceKey is returned by ParseFaceKey for malformed keys.
var ErrInvalidFaceKey = errors.New("invalid face key")

// ParseFaceKey is the inverse of FaceKey. Keys that FaceKey would not
// produce, such as ones with leading zeros or signs, are rejected.
func ParseFaceKey(key string) (int64, image.Rectangle, error) {
	parts := strings.Split(key, "-")
	if len(parts) != 6 || parts[0] != "faceId" {
		return 0, image.Rectangle{}, fmt.Errorf("%w: %q", ErrInvalidFaceKey, key)
	}

	var nums [5]int64
	for i, p := range parts[1:] {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, image.Rectangle{}, fmt.Errorf("%w: %q", ErrInvalidFaceKey, key)
		}
		nums[i] = n
	}

	box := image.Rect(int(nums[1]), int(nums[2]), int(nums[3]), int(nums[4]))
	// Only the form FaceKey produces is accepted, so one face has one key.
	if FaceKey(nums[0], box) != key {
		return 0, image.Rectangle{}, fmt.Errorf("%w: %q is not canonical", ErrInvalidFaceKey, key)
	}
	return nums[0], box, nil
}

// Detector finds faces in a decoded image. Implementations only read the
// buffer; they never retain, modify or release it.
type Detector interface {
	Detect(ctx context.Context, buf *bitmap.Buffer) ([]Face, error)
}

// DetectionError reports a detector failure, including cancellation of the
// surrounding context. It is a per-image failure.
type DetectionError struct {
	Backend string
	Err     error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("%s detector: %v", e.Backend, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// Config selects and configures a detector backend.
type Config struct {
	// Backend is "http" or "goface".
	Backend   string
	URL       string
	ModelsDir string
	Timeout   time.Duration
}

// New builds the configured detector.
func New(cfg Config) (Detector, error) {
	switch cfg.Backend {
	case "", "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http detector requires DETECTOR_URL")
		}
		return NewHTTP(cfg.URL, cfg.Timeout), nil
	case "goface":
		return newGoFace(cfg.ModelsDir)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

// clampFaces clips boxes to bounds and drops any that end up empty.
func clampFaces(faces []Face, bounds image.Rectangle) []Face {
	out := faces[:0]
	for _, f := range faces {
		f.Box = f.Box.Canon().Intersect(bounds)
		if f.Box.Empty() {
			continue
		}
		out = append(out, f)
	}
	return out
}
