package gallery

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"face-gallery/internal/bitmap"
	"face-gallery/internal/database"
	"face-gallery/internal/detector"
	"face-gallery/internal/logging"
)

// Full view decode bounds.
const (
	ViewMaxWidth  = 720
	ViewMaxHeight = 1280
	viewQuality   = 90
)

var logger = logging.For("gallery")

// MediaReader looks up media records and their face tags.
type MediaReader interface {
	GetMedia(ctx context.Context, id int64) (*database.MediaRecord, error)
	FacesForMedia(ctx context.Context, mediaID int64) ([]database.FaceRecord, error)
}

// Decoder decodes a photo location into an owned pool buffer.
type Decoder interface {
	Decode(ctx context.Context, location string, maxWidth, maxHeight int) (*bitmap.Buffer, error)
}

// Annotator outlines faces on a copy of a buffer.
type Annotator interface {
	Annotate(src *bitmap.Buffer, faces []detector.Face) (*bitmap.Buffer, error)
}

// Box is a face rectangle in the coordinates of the returned image.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// FaceView is one face of an inspected image.
type FaceView struct {
	Key string `json:"faceKey"`
	Box Box    `json:"box"`
	Tag string `json:"tag,omitempty"`
}

// Inspection is a freshly annotated full view of a media record.
type Inspection struct {
	Media  database.MediaRecord `json:"media"`
	Width  int                  `json:"width"`
	Height int                  `json:"height"`
	Faces  []FaceView           `json:"faces"`
	// JPEG holds the annotated image.
	JPEG []byte `json:"-"`
}

// Viewer re-runs detection on a persisted photo so the user can tag its
// faces.
type Viewer struct {
	store     MediaReader
	pool      *bitmap.Pool
	decoder   Decoder
	detector  detector.Detector
	annotator Annotator
}

// NewViewer creates a viewer.
func NewViewer(store MediaReader, pool *bitmap.Pool, dec Decoder, det detector.Detector, ann Annotator) *Viewer {
	return &Viewer{store: store, pool: pool, decoder: dec, detector: det, annotator: ann}
}

// Inspect decodes the source of mediaID, detects its faces, and returns the
// annotated image together with each face's key and stored tag.
func (v *Viewer) Inspect(ctx context.Context, mediaID int64) (*Inspection, error) {
	media, err := v.store.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	decoded, err := v.decoder.Decode(ctx, media.SourceLocation, ViewMaxWidth, ViewMaxHeight)
	if err != nil {
		return nil, err
	}
	defer v.pool.Release(decoded)

	faces, err := v.detector.Detect(ctx, decoded)
	if err != nil {
		return nil, err
	}

	annotated, err := v.annotator.Annotate(decoded, faces)
	if err != nil {
		return nil, err
	}
	if annotated != decoded {
		defer v.pool.Release(annotated)
	}

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, annotated.Image(), imaging.JPEG, imaging.JPEGQuality(viewQuality)); err != nil {
		return nil, fmt.Errorf("encode view: %w", err)
	}

	tags := map[string]string{}
	stored, err := v.store.FacesForMedia(ctx, mediaID)
	if err != nil {
		logger.Warn("Media %d: loading face tags failed: %v", mediaID, err)
	}
	for _, f := range stored {
		tags[f.FaceKey] = f.Tag
	}

	views := make([]FaceView, len(faces))
	for i, f := range faces {
		key := f.Key(mediaID)
		views[i] = FaceView{Key: key, Box: boxOf(f.Box), Tag: tags[key]}
	}

	return &Inspection{
		Media:  *media,
		Width:  annotated.Width(),
		Height: annotated.Height(),
		Faces:  views,
		JPEG:   encoded.Bytes(),
	}, nil
}

func boxOf(r image.Rectangle) Box {
	return Box{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}
