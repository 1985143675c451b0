package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// UpsertPhotos inserts or refreshes photo index entries within a batch.
// Existing rows keep their id so processed media stays linked.
func (d *Database) UpsertPhotos(ctx context.Context, b *Batch, photos []Photo) (err error) {
	done := observeQuery("upsert_photo")
	defer func() { done(err) }()

	stmt, err := b.PrepareContext(ctx, `
		INSERT INTO photos (path, bucket, taken_at, size, mod_time, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			bucket = excluded.bucket,
			taken_at = excluded.taken_at,
			size = excluded.size,
			mod_time = excluded.mod_time,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare photo upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UnixMilli()
	for _, p := range photos {
		if _, err = stmt.ExecContext(ctx, p.Path, p.Bucket, p.TakenAt.UnixMilli(), p.Size, p.ModTime.Unix(), now); err != nil {
			return fmt.Errorf("failed to upsert photo %s: %w", p.Path, err)
		}
	}
	return nil
}

// DeleteMissingPhotos removes index entries not refreshed since the given
// time, i.e. files that disappeared during the last walk.
func (d *Database) DeleteMissingPhotos(ctx context.Context, since time.Time) (n int64, err error) {
	done := observeQuery("delete_missing_photos")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, "DELETE FROM photos WHERE updated_at < ?", since.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListPhotos returns photos under the directory prefix filter, newest
// first. An empty filter matches every photo.
func (d *Database) ListPhotos(ctx context.Context, filter string, limit, offset int) (photos []Photo, err error) {
	done := observeQuery("list_photos")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, path, bucket, taken_at, size, mod_time
		FROM photos
		WHERE path LIKE ? ESCAPE '\'
		ORDER BY taken_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, prefixPattern(filter), limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p Photo
		var takenAt, modTime int64
		if err = rows.Scan(&p.ID, &p.Path, &p.Bucket, &takenAt, &p.Size, &modTime); err != nil {
			return nil, err
		}
		p.TakenAt = time.UnixMilli(takenAt)
		p.ModTime = time.Unix(modTime, 0)
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// CountPhotos returns the number of indexed photos.
func (d *Database) CountPhotos(ctx context.Context) (int, error) {
	return d.count(ctx, "count_photos", "SELECT COUNT(*) FROM photos")
}

// CountMatchingPhotos returns the number of photos ListPhotos would page
// through for filter.
func (d *Database) CountMatchingPhotos(ctx context.Context, filter string) (int, error) {
	return d.count(ctx, "count_photos", `SELECT COUNT(*) FROM photos WHERE path LIKE ? ESCAPE '\'`, prefixPattern(filter))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// prefixPattern matches paths inside the directory filter, which is
// relative to the library root. "DCIM/Camera" does not match
// "DCIM/CameraBackup" or "Backup/DCIM/Camera".
func prefixPattern(filter string) string {
	dir := strings.Trim(filter, "/")
	if dir == "" {
		return "%"
	}
	return escapeLike(dir) + "/%"
}
