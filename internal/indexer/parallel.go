package indexer

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"face-gallery/internal/database"
	"face-gallery/internal/decoder"
	"face-gallery/internal/filesystem"
	"face-gallery/internal/logging"
	"face-gallery/internal/mediatypes"
)

// exifProbeBytes bounds how much of each photo is read to find its capture
// time. EXIF lives in the first APP1 segment, which is capped at 64KiB.
const exifProbeBytes = 128 << 10

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of parallel workers
	NumWorkers int
	// BatchSize is the number of photos committed per transaction
	BatchSize int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
	// WithVips indexes formats only libvips can decode
	WithVips bool
}

// DefaultParallelWalkerConfig returns sensible defaults based on available resources
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	// 3 workers is safe for NFS; INDEX_WORKERS overrides.
	numWorkers := 3
	if override := os.Getenv("INDEX_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			numWorkers = count
		}
	}

	return ParallelWalkerConfig{
		NumWorkers:    numWorkers,
		BatchSize:     500,
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

// fileJob represents a file to be processed
type fileJob struct {
	path    string
	info    os.FileInfo
	relPath string
}

// ParallelWalker walks the photo directory, reading capture times on a
// fixed number of workers.
type ParallelWalker struct {
	config   ParallelWalkerConfig
	photoDir string
	retry    filesystem.RetryConfig

	jobs    chan fileJob
	results chan database.Photo

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	photosProcessed atomic.Int64
	exifMisses      atomic.Int64
}

// NewParallelWalker creates a walker bound to ctx.
func NewParallelWalker(ctx context.Context, photoDir string, config ParallelWalkerConfig) *ParallelWalker {
	ctx, cancel := context.WithCancel(ctx)

	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}

	return &ParallelWalker{
		config:   config,
		photoDir: photoDir,
		retry:    filesystem.DefaultRetryConfig(),
		jobs:     make(chan fileJob, config.ChannelBuffer),
		results:  make(chan database.Photo, config.ChannelBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Walk performs a parallel walk of the directory tree and returns every
// supported photo found.
func (pw *ParallelWalker) Walk() ([]database.Photo, error) {
	logging.Info("Starting parallel photo walk with %d workers", pw.config.NumWorkers)
	startTime := time.Now()
	defer pw.cancel()

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(i)
	}

	var photos []database.Photo
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for p := range pw.results {
			photos = append(photos, p)
		}
	}()

	err := pw.walkAndEnqueue()

	close(pw.jobs)
	pw.wg.Wait()
	close(pw.results)
	<-collected

	logging.Info("Parallel walk complete: %d photos in %v (no capture time: %d)",
		pw.photosProcessed.Load(), time.Since(startTime), pw.exifMisses.Load())

	return photos, err
}

func (pw *ParallelWalker) walkAndEnqueue() error {
	return filepath.WalkDir(pw.photoDir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-pw.ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") && path != pw.photoDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !mediatypes.IsPhoto(d.Name(), pw.config.WithVips) {
			return nil
		}

		relPath, err := filepath.Rel(pw.photoDir, path)
		if err != nil {
			//nolint:nilerr // skip this file but keep walking
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn("Error getting info for %s: %v", path, err)
			return nil
		}

		select {
		case pw.jobs <- fileJob{path: path, info: info, relPath: filepath.ToSlash(relPath)}:
		case <-pw.ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
}

func (pw *ParallelWalker) worker(id int) {
	defer pw.wg.Done()

	logging.Debug("Worker %d started", id)

	for job := range pw.jobs {
		if pw.ctx.Err() != nil {
			continue
		}

		photo := pw.processFile(job)
		pw.photosProcessed.Add(1)

		select {
		case pw.results <- photo:
		case <-pw.ctx.Done():
		}
	}

	logging.Debug("Worker %d finished", id)
}

func (pw *ParallelWalker) processFile(job fileJob) database.Photo {
	photo := database.Photo{
		Path:    job.relPath,
		Bucket:  mediatypes.Bucket(job.relPath),
		Size:    job.info.Size(),
		ModTime: job.info.ModTime(),
		TakenAt: job.info.ModTime(),
	}

	if taken, ok := pw.captureTime(job.path); ok {
		photo.TakenAt = taken
	} else {
		pw.exifMisses.Add(1)
	}
	return photo
}

func (pw *ParallelWalker) captureTime(path string) (time.Time, bool) {
	f, err := filesystem.OpenWithRetry(path, pw.retry)
	if err != nil {
		logging.Debug("Cannot open %s for EXIF probe: %v", path, err)
		return time.Time{}, false
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, exifProbeBytes))
	if err != nil {
		return time.Time{}, false
	}
	return decoder.CaptureTime(data)
}

// Stop cancels the parallel walk
func (pw *ParallelWalker) Stop() {
	pw.cancel()
}

// Stats returns current processing statistics
func (pw *ParallelWalker) Stats() (photos, withoutExif int64) {
	return pw.photosProcessed.Load(), pw.exifMisses.Load()
}
