package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExistingMediaIDs returns the subset of ids that already have a media record.
func (d *Database) ExistingMediaIDs(ctx context.Context, ids []int64) (found map[int64]struct{}, err error) {
	found = make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	done := observeQuery("existing_media_ids")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	// #nosec G202 -- placeholders only
	rows, err := d.db.QueryContext(ctx, "SELECT id FROM media WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = struct{}{}
	}
	return found, rows.Err()
}

// BatchInsertMedia writes all records in a single transaction.
func (d *Database) BatchInsertMedia(ctx context.Context, records []MediaRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	done := observeQuery("batch_insert_media")
	defer func() { done(err) }()

	b, err := d.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { err = d.EndBatch(b, err) }()

	stmt, err := b.PrepareContext(ctx, `
		INSERT INTO media (id, source_location, thumbnail_location, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare media insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		created := r.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err = stmt.ExecContext(ctx, r.ID, r.SourceLocation, r.ThumbnailLocation, created.Unix()); err != nil {
			return fmt.Errorf("failed to insert media %d: %w", r.ID, err)
		}
	}
	return nil
}

// GetMedia returns one media record or ErrNotFound.
func (d *Database) GetMedia(ctx context.Context, id int64) (m *MediaRecord, err error) {
	done := observeQuery("get_media")
	defer func() {
		if errors.Is(err, ErrNotFound) {
			done(nil)
			return
		}
		done(err)
	}()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec MediaRecord
	var created int64
	err = d.db.QueryRowContext(ctx,
		"SELECT id, source_location, thumbnail_location, created_at FROM media WHERE id = ?", id).
		Scan(&rec.ID, &rec.SourceLocation, &rec.ThumbnailLocation, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(created, 0)
	return &rec, nil
}

// PagedMedia lists media records by id descending.
func (d *Database) PagedMedia(ctx context.Context, limit, offset int) (records []MediaRecord, err error) {
	done := observeQuery("paged_media")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, source_location, thumbnail_location, created_at
		FROM media
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records = []MediaRecord{}
	for rows.Next() {
		var rec MediaRecord
		var created int64
		if err = rows.Scan(&rec.ID, &rec.SourceLocation, &rec.ThumbnailLocation, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(created, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteMedia removes a media record and its face tags.
func (d *Database) DeleteMedia(ctx context.Context, id int64) (err error) {
	done := observeQuery("delete_media")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, "DELETE FROM media WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountMedia returns the number of processed media records.
func (d *Database) CountMedia(ctx context.Context) (int, error) {
	return d.count(ctx, "count_media", "SELECT COUNT(*) FROM media")
}
