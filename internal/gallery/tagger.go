package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"face-gallery/internal/database"
	"face-gallery/internal/detector"
	"face-gallery/internal/metrics"
)

// MaxTagLength bounds a tag in characters.
const MaxTagLength = 100

// ErrInvalidTag is returned for empty or overlong tags.
var ErrInvalidTag = errors.New("invalid tag")

// FaceStore is the face tag part of database.Store.
type FaceStore interface {
	InsertOrUpdateFace(ctx context.Context, face database.FaceRecord) error
	FacesForMedia(ctx context.Context, mediaID int64) ([]database.FaceRecord, error)
}

// Tagger writes user-supplied tags for detected faces.
type Tagger struct {
	store FaceStore
}

// NewTagger creates a tagger over store.
func NewTagger(store FaceStore) *Tagger {
	return &Tagger{store: store}
}

// SaveFaceTag sets the tag of a face. faceKey must have been derived from
// mediaID. Saving the same key again replaces the tag. It returns
// database.ErrNotFound when the media record does not exist.
func (t *Tagger) SaveFaceTag(ctx context.Context, mediaID int64, faceKey, tag string) (err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.FaceTagsSaved.WithLabelValues(status).Inc()
	}()

	keyMedia, _, err := detector.ParseFaceKey(faceKey)
	if err != nil {
		return err
	}
	if keyMedia != mediaID {
		return fmt.Errorf("%w: key %q belongs to media %d", detector.ErrInvalidFaceKey, faceKey, keyMedia)
	}

	tag = strings.TrimSpace(tag)
	if tag == "" || utf8.RuneCountInString(tag) > MaxTagLength {
		return fmt.Errorf("%w: must be 1-%d characters", ErrInvalidTag, MaxTagLength)
	}

	return t.store.InsertOrUpdateFace(ctx, database.FaceRecord{
		MediaID: mediaID,
		FaceKey: faceKey,
		Tag:     tag,
	})
}

// Faces returns the stored tags of a media record.
func (t *Tagger) Faces(ctx context.Context, mediaID int64) ([]database.FaceRecord, error) {
	return t.store.FacesForMedia(ctx, mediaID)
}
