package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"face-gallery/internal/logging"
	"face-gallery/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database holds the photo index and, unless PostgreSQL is configured, the
// processed media and face tag tables.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the SQLite database at dbPath.
// dbPath is the full path to the database file and its parent directory
// must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// WAL for concurrent readers; foreign keys for the faces cascade.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) (err error) {
	done := observeQuery("initialize_schema")
	defer func() { done(err) }()

	schema := `
	-- Photo index
	CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		bucket TEXT NOT NULL,
		taken_at INTEGER NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_photos_taken_at ON photos(taken_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_photos_updated_at ON photos(updated_at);

	-- Processed media, keyed by photo id
	CREATE TABLE IF NOT EXISTS media (
		id INTEGER PRIMARY KEY,
		source_location TEXT NOT NULL,
		thumbnail_location TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Face tags
	CREATE TABLE IF NOT EXISTS faces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		media_id INTEGER NOT NULL,
		face_key TEXT NOT NULL,
		tag TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (media_id) REFERENCES media(id) ON DELETE CASCADE,
		UNIQUE(media_id, face_key)
	);

	CREATE INDEX IF NOT EXISTS idx_faces_media_id ON faces(media_id);

	-- Metadata table
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err = d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations adds columns introduced after the first schema version.
func (d *Database) runMigrations(ctx context.Context) error {
	var hasUpdatedAt int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM pragma_table_info('faces')
		WHERE name = 'updated_at'
	`).Scan(&hasUpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to inspect faces table: %w", err)
	}

	if hasUpdatedAt == 0 {
		logging.Info("Migrating faces table: adding updated_at column")
		if _, err := d.db.ExecContext(ctx,
			"ALTER TABLE faces ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0"); err != nil {
			return fmt.Errorf("failed to add faces.updated_at: %w", err)
		}
	}

	_, err = d.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value) VALUES ('schema_version', '2') ON CONFLICT(key) DO UPDATE SET value = excluded.value")
	return err
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Batch is an open write transaction started by BeginBatch.
type Batch struct {
	*sql.Tx
	start time.Time
}

// BeginBatch starts a transaction for batch operations.
// The caller is responsible for calling EndBatch when done.
func (d *Database) BeginBatch(ctx context.Context) (*Batch, error) {
	// The write lock only guards transaction creation.
	d.mu.Lock()
	start := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &Batch{Tx: tx, start: start}, nil
}

// EndBatch commits the batch, or rolls it back when err is non-nil.
func (d *Database) EndBatch(b *Batch, err error) error {
	duration := time.Since(b.start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := b.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return b.Commit()
}

// LibraryStats reports totals for the metrics collector and the stats API.
func (d *Database) LibraryStats(ctx context.Context) (metrics.Stats, error) {
	var stats metrics.Stats
	var err error

	if stats.Photos, err = d.CountPhotos(ctx); err != nil {
		return stats, err
	}
	if stats.Media, err = d.CountMedia(ctx); err != nil {
		return stats, err
	}
	if stats.FaceTags, err = d.CountFaces(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.WithLabelValues("sqlite").Set(float64(stats.OpenConnections))
}

func (d *Database) count(ctx context.Context, op, query string, args ...any) (n int, err error) {
	done := observeQuery(op)
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// observeQuery starts timing a query; call the returned func with its error.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		recordQuery(operation, start, err)
	}
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only (mode %v), writes will fail", path, info.Mode())
			if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
				logging.Error("Failed to fix permissions on %s: %v", path, chmodErr)
			} else {
				logging.Info("Fixed permissions on %s", path)
			}
		}
	}

	return nil
}
