package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"face-gallery/internal/database"
	"face-gallery/internal/logging"
	"face-gallery/internal/metrics"
)

const (
	// Minimum photos to index before marking server as ready
	minPhotosForReady = 100

	// Delay between batches to allow other operations
	batchDelay = 10 * time.Millisecond

	// Default polling interval for change detection
	defaultPollInterval = 30 * time.Second
)

// Indexer maintains the photo index that the batch pipeline enumerates.
type Indexer struct {
	db                   *database.Database
	photoDir             string
	indexInterval        time.Duration
	pollInterval         time.Duration
	stopChan             chan struct{}
	stopOnce             sync.Once
	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	lastResult           Result
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	photosIndexed atomic.Int64
	indexProgress atomic.Value

	parallelConfig ParallelWalkerConfig

	// Callback when indexing completes
	onIndexComplete func(Result)

	// Last known state for lightweight change detection
	stateMu            sync.RWMutex
	lastRootModTime    time.Time
	lastTopLevelCount  int
	lastSubdirModTimes map[string]time.Time
}

// Result summarizes one index run.
type Result struct {
	Photos   int           `json:"photos"`
	Removed  int64         `json:"removed"`
	Duration time.Duration `json:"duration"`
}

// IndexProgress tracks the current indexing progress
type IndexProgress struct {
	PhotosIndexed int64     `json:"photosIndexed"`
	IsIndexing    bool      `json:"isIndexing"`
	StartedAt     time.Time `json:"startedAt,omitempty"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool           `json:"ready"`
	Indexing          bool           `json:"indexing"`
	StartTime         time.Time      `json:"startTime"`
	Uptime            string         `json:"uptime"`
	LastIndexed       time.Time      `json:"lastIndexed,omitempty"`
	InitialIndexError string         `json:"initialIndexError,omitempty"`
	PhotosIndexed     int64          `json:"photosIndexed"`
	IndexProgress     *IndexProgress `json:"indexProgress,omitempty"`
}

// New creates a new Indexer for photoDir. A zero indexInterval disables
// periodic re-indexing.
func New(db *database.Database, photoDir string, indexInterval time.Duration) *Indexer {
	idx := &Indexer{
		db:                 db,
		photoDir:           photoDir,
		indexInterval:      indexInterval,
		pollInterval:       defaultPollInterval,
		stopChan:           make(chan struct{}),
		startTime:          time.Now(),
		parallelConfig:     DefaultParallelWalkerConfig(),
		lastSubdirModTimes: make(map[string]time.Time),
	}
	idx.indexProgress.Store(IndexProgress{})
	return idx
}

// SetPollInterval sets the interval for polling-based change detection.
func (idx *Indexer) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		idx.pollInterval = interval
	}
}

// SetParallelConfig sets the parallel walker configuration.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) {
	idx.parallelConfig = config
}

// SetOnIndexComplete sets a callback to be invoked when indexing completes.
func (idx *Indexer) SetOnIndexComplete(callback func(Result)) {
	idx.onIndexComplete = callback
}

// Start runs an initial index in the background, then keeps the index
// current through polling and periodic re-indexing until Stop.
func (idx *Indexer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-idx.stopChan
		cancel()
	}()

	go func() {
		logging.Info("Starting initial index in background...")
		if _, err := idx.Index(ctx); err != nil {
			logging.Error("Initial index error: %v", err)
			idx.indexMu.Lock()
			idx.initialIndexError = err
			idx.indexMu.Unlock()
		}
	}()

	go idx.pollForChanges(ctx)

	if idx.indexInterval > 0 {
		go idx.periodicIndex(ctx)
	}
}

// Stop stops the indexing process.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() { close(idx.stopChan) })
}

// IsReady returns true if the server is ready to accept traffic.
func (idx *Indexer) IsReady() bool {
	if idx.photosIndexed.Load() >= minPhotosForReady {
		return true
	}

	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

func (idx *Indexer) getProgress() IndexProgress {
	if progress, ok := idx.indexProgress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	progress := idx.getProgress()

	status := HealthStatus{
		Ready:         idx.initialIndexComplete || idx.photosIndexed.Load() >= minPhotosForReady,
		Indexing:      idx.isIndexing,
		StartTime:     idx.startTime,
		Uptime:        time.Since(idx.startTime).String(),
		LastIndexed:   idx.lastIndexTime,
		PhotosIndexed: idx.photosIndexed.Load(),
	}

	if idx.isIndexing {
		status.IndexProgress = &progress
	}

	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}

	return status
}

// Index walks the photo directory once, upserts every photo found and
// removes entries whose files disappeared. A call made while another index
// is running returns immediately with a zero Result.
func (idx *Indexer) Index(ctx context.Context) (Result, error) {
	if !idx.tryStartIndexing() {
		logging.Info("Index already in progress, skipping...")
		return Result{}, nil
	}
	defer idx.finishIndexing()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting photo indexing of %s...", idx.photoDir)

	idx.resetCounters(startTime)

	// Rows not touched by this run are removed afterwards.
	indexTime := startTime

	if _, err := os.Stat(idx.photoDir); err != nil {
		metrics.IndexerErrors.Inc()
		return Result{}, fmt.Errorf("photo directory unavailable: %w", err)
	}

	walker := NewParallelWalker(ctx, idx.photoDir, idx.parallelConfig)
	photos, err := walker.Walk()
	if err != nil && !errors.Is(err, fs.SkipAll) {
		metrics.IndexerErrors.Inc()
		return Result{}, fmt.Errorf("parallel walk error: %w", err)
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	idx.photosIndexed.Store(int64(len(photos)))
	idx.updateProgress(startTime)

	if err := idx.processBatchedPhotos(ctx, photos, startTime); err != nil {
		metrics.IndexerErrors.Inc()
		return Result{}, err
	}

	removed, err := idx.db.DeleteMissingPhotos(ctx, indexTime)
	if err != nil {
		logging.Error("Error cleaning up missing photos: %v", err)
		metrics.IndexerErrors.Inc()
	} else if removed > 0 {
		logging.Info("Removed %d missing photos from index", removed)
	}

	result := Result{
		Photos:   len(photos),
		Removed:  removed,
		Duration: time.Since(startTime),
	}
	idx.finalizeIndex(result)
	idx.updateLastKnownState()

	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(result.Duration.Seconds())
	metrics.IndexerPhotosProcessed.Add(float64(result.Photos))

	return result, nil
}

// processBatchedPhotos upserts photos in transactions of BatchSize.
func (idx *Indexer) processBatchedPhotos(ctx context.Context, photos []database.Photo, startTime time.Time) error {
	total := len(photos)
	batchSize := idx.parallelConfig.BatchSize
	if batchSize < 1 {
		batchSize = 500
	}
	logging.Info("Processing %d photos in batches of %d", total, batchSize)

	for i := 0; i < total; i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(i+batchSize, total)
		if err := idx.processBatch(ctx, photos[i:end]); err != nil {
			logging.Error("Error processing batch: %v", err)
		}

		idx.updateProgress(startTime)
		time.Sleep(batchDelay)

		if end%5000 == 0 || end == total {
			logging.Info("Database insert progress: %d/%d photos", end, total)
		}
	}

	return nil
}

func (idx *Indexer) processBatch(ctx context.Context, photos []database.Photo) error {
	if len(photos) == 0 {
		return nil
	}

	b, err := idx.db.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	if err := idx.db.EndBatch(b, idx.db.UpsertPhotos(ctx, b, photos)); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// pollForChanges periodically checks for file changes.
func (idx *Indexer) pollForChanges(ctx context.Context) {
	for !idx.IsReady() {
		select {
		case <-time.After(1 * time.Second):
		case <-ctx.Done():
			return
		}
	}

	logging.Info("Starting change detection polling (interval: %v)", idx.pollInterval)

	ticker := time.NewTicker(idx.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := idx.detectChanges()
			if err != nil {
				logging.Error("Error detecting changes: %v", err)
				continue
			}
			if changed {
				logging.Info("Photo changes detected, triggering re-index")
				if _, err := idx.Index(ctx); err != nil {
					logging.Error("Re-index after change detection failed: %v", err)
				}
			}
		case <-ctx.Done():
			logging.Info("Change detection polling stopped")
			return
		}
	}
}

// detectChanges checks only the root directory's modification time, its
// top-level entry count and each top-level directory's modification time,
// avoiding a recursive walk on NFS.
func (idx *Indexer) detectChanges() (bool, error) {
	rootInfo, err := os.Stat(idx.photoDir)
	if err != nil {
		return false, fmt.Errorf("failed to stat photo directory: %w", err)
	}

	idx.stateMu.RLock()
	lastRootModTime := idx.lastRootModTime
	lastTopLevelCount := idx.lastTopLevelCount
	idx.stateMu.RUnlock()

	if rootInfo.ModTime().After(lastRootModTime) {
		logging.Debug("Root directory modified: %v > %v", rootInfo.ModTime(), lastRootModTime)
		return true, nil
	}

	entries, err := os.ReadDir(idx.photoDir)
	if err != nil {
		return false, fmt.Errorf("failed to read photo directory: %w", err)
	}

	topLevelCount := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), ".") {
			topLevelCount++
		}
	}

	if topLevelCount != lastTopLevelCount {
		logging.Debug("Top-level count changed: %d -> %d", lastTopLevelCount, topLevelCount)
		return true, nil
	}

	return idx.checkSubdirectorySample(entries), nil
}

func (idx *Indexer) checkSubdirectorySample(entries []fs.DirEntry) bool {
	idx.stateMu.RLock()
	lastSubdirModTimes := idx.lastSubdirModTimes
	idx.stateMu.RUnlock()

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		lastMod, exists := lastSubdirModTimes[entry.Name()]
		if !exists {
			logging.Debug("New subdirectory detected: %s", entry.Name())
			return true
		}
		if info.ModTime().After(lastMod) {
			logging.Debug("Subdirectory %s modified: %v > %v", entry.Name(), info.ModTime(), lastMod)
			return true
		}
	}

	return false
}

// updateLastKnownState updates the cached state after indexing.
func (idx *Indexer) updateLastKnownState() {
	rootInfo, err := os.Stat(idx.photoDir)
	if err != nil {
		logging.Warn("Failed to stat photo directory for state update: %v", err)
		return
	}

	entries, err := os.ReadDir(idx.photoDir)
	if err != nil {
		logging.Warn("Failed to read photo directory for state update: %v", err)
		return
	}

	topLevelCount := 0
	subdirModTimes := make(map[string]time.Time)

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		topLevelCount++

		if entry.IsDir() {
			if info, err := entry.Info(); err == nil {
				subdirModTimes[entry.Name()] = info.ModTime()
			}
		}
	}

	idx.stateMu.Lock()
	idx.lastRootModTime = rootInfo.ModTime()
	idx.lastTopLevelCount = topLevelCount
	idx.lastSubdirModTimes = subdirModTimes
	idx.stateMu.Unlock()
}

func (idx *Indexer) periodicIndex(ctx context.Context) {
	ticker := time.NewTicker(idx.indexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic re-index triggered")
			if _, err := idx.Index(ctx); err != nil {
				logging.Error("periodic re-index failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.initialIndexComplete = true
	idx.indexProgress.Store(IndexProgress{PhotosIndexed: idx.photosIndexed.Load()})
}

func (idx *Indexer) resetCounters(startTime time.Time) {
	idx.photosIndexed.Store(0)
	idx.indexProgress.Store(IndexProgress{
		IsIndexing: true,
		StartedAt:  startTime,
	})
}

func (idx *Indexer) updateProgress(startTime time.Time) {
	idx.indexProgress.Store(IndexProgress{
		PhotosIndexed: idx.photosIndexed.Load(),
		IsIndexing:    true,
		StartedAt:     startTime,
	})
}

func (idx *Indexer) finalizeIndex(result Result) {
	idx.indexMu.Lock()
	idx.lastIndexTime = time.Now()
	idx.lastResult = result
	idx.indexMu.Unlock()

	logging.Info("Index complete: %d photos (%d removed) in %v", result.Photos, result.Removed, result.Duration)

	if idx.onIndexComplete != nil {
		idx.onIndexComplete(result)
	}
}

// IsIndexing returns whether an index operation is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns the time of the last completed index operation.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// TriggerIndex starts a re-index in the background.
func (idx *Indexer) TriggerIndex(ctx context.Context) {
	go func() {
		if _, err := idx.Index(ctx); err != nil {
			logging.Error("manually triggered re-index failed: %v", err)
		}
	}()
}

// GetProgress returns the current indexing progress.
func (idx *Indexer) GetProgress() IndexProgress {
	return idx.getProgress()
}
