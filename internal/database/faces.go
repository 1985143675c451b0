package database

import (
	"context"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

// InsertOrUpdateFace sets the tag for a face, replacing any previous tag.
func (d *Database) InsertOrUpdateFace(ctx context.Context, face FaceRecord) (err error) {
	done := observeQuery("upsert_face")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO faces (media_id, face_key, tag, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(media_id, face_key) DO UPDATE SET
			tag = excluded.tag,
			updated_at = excluded.updated_at
	`, face.MediaID, face.FaceKey, face.Tag, time.Now().Unix())

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return ErrNotFound
	}
	return err
}

// FacesForMedia returns all face tags of a media record ordered by key.
func (d *Database) FacesForMedia(ctx context.Context, mediaID int64) (faces []FaceRecord, err error) {
	done := observeQuery("faces_for_media")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, media_id, face_key, tag, updated_at
		FROM faces
		WHERE media_id = ?
		ORDER BY face_key
	`, mediaID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	faces = []FaceRecord{}
	for rows.Next() {
		var f FaceRecord
		var updated int64
		if err = rows.Scan(&f.ID, &f.MediaID, &f.FaceKey, &f.Tag, &updated); err != nil {
			return nil, err
		}
		f.UpdatedAt = time.Unix(updated, 0)
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// CountFaces returns the number of tagged faces.
func (d *Database) CountFaces(ctx context.Context) (int, error) {
	return d.count(ctx, "count_faces", "SELECT COUNT(*) FROM faces")
}
