package decoder

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// orientationDegrees returns the clockwise rotation, in degrees, needed to
// display the image upright. Only the pure rotations 90, 180 and 270 are
// honored; missing tags, mirrored orientations and non-EXIF formats yield 0.
func orientationDegrees(data []byte) int {
	x := decodeExif(data)
	if x == nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return degreesForOrientation(v)
}

func degreesForOrientation(v int) int {
	switch v {
	case 3:
		return 180
	case 6:
		return 90
	case 8:
		return 270
	default:
		return 0
	}
}

// CaptureTime returns the EXIF DateTimeOriginal (or DateTime) of an image.
func CaptureTime(data []byte) (time.Time, bool) {
	x := decodeExif(data)
	if x == nil {
		return time.Time{}, false
	}
	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func decodeExif(data []byte) (x *exif.Exif) {
	// goexif can panic on truncated IFDs.
	defer func() {
		if recover() != nil {
			x = nil
		}
	}()

	parsed, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return parsed
}
