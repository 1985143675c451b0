package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"face-gallery/internal/database"
	"face-gallery/internal/logging"
	"face-gallery/internal/metrics"
)

const (
	defaultTimeout = 5 * time.Second

	// SQLSTATE foreign_key_violation
	fkViolation = "23503"
)

var logger = logging.For("pgstore")

// Store manages the PostgreSQL pool holding media and face tag tables.
type Store struct {
	pool *pgxpool.Pool
}

var _ database.Store = (*Store)(nil)

// New connects to connString and ensures the schema exists.
func New(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logger.Info("Connected to %s/%s", cfg.ConnConfig.Host, cfg.ConnConfig.Database)
	return &Store{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) (err error) {
	done := observeQuery("initialize_schema")
	defer func() { done(err) }()

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS media (
			id BIGINT PRIMARY KEY,
			source_location TEXT NOT NULL,
			thumbnail_location TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS faces (
			id BIGSERIAL PRIMARY KEY,
			media_id BIGINT NOT NULL REFERENCES media(id) ON DELETE CASCADE,
			face_key TEXT NOT NULL,
			tag TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (media_id, face_key)
		);
		CREATE INDEX IF NOT EXISTS faces_media_id_idx ON faces (media_id);
	`)
	return err
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// UpdateDBMetrics publishes pool statistics.
func (s *Store) UpdateDBMetrics() {
	metrics.DBConnectionsOpen.WithLabelValues("postgres").Set(float64(s.pool.Stat().TotalConns()))
}

// ExistingMediaIDs returns the subset of ids that already have a media record.
func (s *Store) ExistingMediaIDs(ctx context.Context, ids []int64) (found map[int64]struct{}, err error) {
	found = make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	done := observeQuery("existing_media_ids")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, "SELECT id FROM media WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	got, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	for _, id := range got {
		found[id] = struct{}{}
	}
	return found, nil
}

// BatchInsertMedia writes all records in one transaction.
func (s *Store) BatchInsertMedia(ctx context.Context, records []database.MediaRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	done := observeQuery("batch_insert_media")
	defer func() { done(err) }()

	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		duration := time.Since(start).Seconds()
		if err != nil {
			metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
			return
		}
		metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
		err = tx.Commit(ctx)
	}()

	batch := &pgx.Batch{}
	for _, r := range records {
		created := r.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		batch.Queue(`
			INSERT INTO media (id, source_location, thumbnail_location, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.SourceLocation, r.ThumbnailLocation, created)
	}

	return tx.SendBatch(ctx, batch).Close()
}

// GetMedia returns one media record or database.ErrNotFound.
func (s *Store) GetMedia(ctx context.Context, id int64) (m *database.MediaRecord, err error) {
	done := observeQuery("get_media")
	defer func() {
		if errors.Is(err, database.ErrNotFound) {
			done(nil)
			return
		}
		done(err)
	}()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec database.MediaRecord
	err = s.pool.QueryRow(ctx,
		"SELECT id, source_location, thumbnail_location, created_at FROM media WHERE id = $1", id).
		Scan(&rec.ID, &rec.SourceLocation, &rec.ThumbnailLocation, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PagedMedia lists media records by id descending.
func (s *Store) PagedMedia(ctx context.Context, limit, offset int) (records []database.MediaRecord, err error) {
	done := observeQuery("paged_media")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, source_location, thumbnail_location, created_at
		FROM media
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}

	records, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (database.MediaRecord, error) {
		var rec database.MediaRecord
		err := row.Scan(&rec.ID, &rec.SourceLocation, &rec.ThumbnailLocation, &rec.CreatedAt)
		return rec, err
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []database.MediaRecord{}
	}
	return records, nil
}

// DeleteMedia removes a media record and, by cascade, its face tags.
func (s *Store) DeleteMedia(ctx context.Context, id int64) (err error) {
	done := observeQuery("delete_media")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, "DELETE FROM media WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// CountMedia returns the number of processed media records.
func (s *Store) CountMedia(ctx context.Context) (int, error) {
	return s.count(ctx, "count_media", "SELECT COUNT(*) FROM media")
}

// InsertOrUpdateFace sets the tag for a face, replacing any previous tag.
func (s *Store) InsertOrUpdateFace(ctx context.Context, face database.FaceRecord) (err error) {
	done := observeQuery("upsert_face")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO faces (media_id, face_key, tag, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (media_id, face_key) DO UPDATE SET
			tag = EXCLUDED.tag,
			updated_at = EXCLUDED.updated_at
	`, face.MediaID, face.FaceKey, face.Tag)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
		return database.ErrNotFound
	}
	return err
}

// FacesForMedia returns all face tags of a media record ordered by key.
func (s *Store) FacesForMedia(ctx context.Context, mediaID int64) (faces []database.FaceRecord, err error) {
	done := observeQuery("faces_for_media")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, media_id, face_key, tag, updated_at
		FROM faces
		WHERE media_id = $1
		ORDER BY face_key
	`, mediaID)
	if err != nil {
		return nil, err
	}

	faces, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (database.FaceRecord, error) {
		var f database.FaceRecord
		err := row.Scan(&f.ID, &f.MediaID, &f.FaceKey, &f.Tag, &f.UpdatedAt)
		return f, err
	})
	if err != nil {
		return nil, err
	}
	if faces == nil {
		faces = []database.FaceRecord{}
	}
	return faces, nil
}

// CountFaces returns the number of tagged faces.
func (s *Store) CountFaces(ctx context.Context) (int, error) {
	return s.count(ctx, "count_faces", "SELECT COUNT(*) FROM faces")
}

func (s *Store) count(ctx context.Context, op, query string) (n int, err error) {
	done := observeQuery(op)
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = s.pool.QueryRow(ctx, query).Scan(&n)
	return n, err
}

func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
		metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
